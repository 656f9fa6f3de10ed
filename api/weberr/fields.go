package weberr

import "errors"

// Fields collects the log fields of every wrapper in the chain of err.
// Outer wrappers win on duplicate keys.
func Fields(err error) (map[string]interface{}, bool) {
	var all map[string]interface{}
	for err != nil {
		var fe *fieldsError
		if !errors.As(err, &fe) {
			break
		}
		if all == nil {
			all = make(map[string]interface{}, len(fe.fields))
		}
		for k, v := range fe.fields {
			if _, ok := all[k]; !ok {
				all[k] = v
			}
		}
		err = fe.error
	}
	return all, all != nil
}

type fieldsError struct {
	error
	fields map[string]interface{}
}

func (e *fieldsError) Unwrap() error { return e.error }
