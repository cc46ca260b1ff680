package util

import "io"

// WriteBOM writes the UTF-8 byte order mark. Excel only detects UTF-8
// in CSV files when the mark is present.
func WriteBOM(w io.Writer) error {
	_, err := io.WriteString(w, "\uFEFF")
	return err
}
