package tool

import (
	"fmt"
	"strings"
	"time"
)

// RegisterBuiltins installs the stock tool set.
func RegisterBuiltins(r *Registry) {
	r.Register(Descriptor{
		ID:          "time.now",
		Name:        "Current time",
		Description: "Returns the current UTC time in RFC 3339 form.",
	}, func(map[string]any) (any, error) {
		return time.Now().UTC().Format(time.RFC3339), nil
	})

	r.Register(Descriptor{
		ID:          "text.wordcount",
		Name:        "Word count",
		Description: "Counts words in the `text` argument.",
	}, func(args map[string]any) (any, error) {
		text, ok := args["text"].(string)
		if !ok {
			return nil, fmt.Errorf("text.wordcount: missing string argument `text`")
		}
		return len(strings.Fields(text)), nil
	})

	r.Register(Descriptor{
		ID:          "math.sum",
		Name:        "Sum",
		Description: "Sums the numeric `values` argument.",
	}, func(args map[string]any) (any, error) {
		values, ok := args["values"].([]float64)
		if !ok {
			// JSON decoding yields []any.
			raw, rawOK := args["values"].([]any)
			if !rawOK {
				return nil, fmt.Errorf("math.sum: missing numeric argument `values`")
			}
			values = make([]float64, 0, len(raw))
			for _, v := range raw {
				f, fOK := v.(float64)
				if !fOK {
					return nil, fmt.Errorf("math.sum: non-numeric value %v", v)
				}
				values = append(values, f)
			}
		}
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum, nil
	})
}
