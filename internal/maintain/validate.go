package maintain

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/storekit/storekit/pkg/errors"
)

// ValidateResult reports the well-formedness of the canonical data file.
type ValidateResult struct {
	Records   int
	Malformed []string
	Revision  string
}

// Valid reports whether every record parsed cleanly.
func (r *ValidateResult) Valid() bool {
	return len(r.Malformed) == 0
}

// Validate fetches the canonical data file and checks that it is a JSON
// object of records, each itself a JSON object. Field-level schema checks
// are out of scope; this guards against corrupting the store with a
// malformed file.
func Validate(ctx context.Context, client Fetcher, dataFile string) (*ValidateResult, error) {
	content, err := client.FetchFile(ctx, dataFile)
	if err != nil {
		return nil, err
	}

	var records map[string]json.RawMessage
	if err := json.Unmarshal(content.Data, &records); err != nil {
		return nil, errors.Newf(errors.ErrCodeValidationFailed, "%s is not a JSON object of records", dataFile).WithCause(err)
	}

	result := &ValidateResult{
		Records:  len(records),
		Revision: content.Revision,
	}
	for key, raw := range records {
		var record map[string]json.RawMessage
		if err := json.Unmarshal(raw, &record); err != nil {
			result.Malformed = append(result.Malformed, key)
		}
	}
	sort.Strings(result.Malformed)

	return result, nil
}
