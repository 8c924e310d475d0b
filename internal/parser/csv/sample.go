package csv

import "io"

// Sample reads the header row and up to maxRows data rows, returning the
// headers and the raw sampled values grouped by original header. Short
// rows are padded with empty strings so every column sees one value per
// sampled row; values are not trimmed here. Lines the tokenizer rejects
// are skipped. maxRows <= 0 falls back to DefaultSampleRows. The source
// is closed before returning.
func Sample(src io.ReadCloser, opt Options, maxRows int) ([]string, map[string][]string, error) {
	r, err := NewReader(src, opt)
	if err != nil {
		return nil, nil, err
	}
	defer r.src.Close()

	if maxRows <= 0 {
		maxRows = DefaultSampleRows
	}

	samples := make(map[string][]string, len(r.headers))
	for _, h := range r.headers {
		samples[h] = nil
	}

	for n := 0; n < maxRows; n++ {
		rec, err := r.read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		for i, h := range r.headers {
			if i < len(rec) {
				samples[h] = append(samples[h], rec[i])
			} else {
				samples[h] = append(samples[h], "")
			}
		}
	}
	return r.headers, samples, nil
}
