package tables

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/gradekeep/gradekeep/pkg/errors"
)

// utf8BOM signs written files so spreadsheet tools pick the right
// encoding, matching the upstream exports.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Write renders the table as CSV to w with a UTF-8 BOM signature.
func (t *Table) Write(w io.Writer) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for i := range t.Rows {
		if err := cw.Write(t.Row(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save writes the table to a file, creating or truncating it.
func (t *Table) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WrapIO("create", path, err)
	}
	if err := t.Write(f); err != nil {
		f.Close()
		return errors.WrapIO("write", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.WrapIO("close", path, err)
	}
	return nil
}
