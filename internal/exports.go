package internal

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// sendWorkbook renders a workbook and sends it as a dated attachment. The
// workbook is built in memory so a render failure can still become a 500.
func sendWorkbook(w http.ResponseWriter, r *http.Request, base string, render func(w io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		serverError(w, r, "render workbook", err)
		return
	}

	name := fmt.Sprintf("%s_%s.xlsx", base, time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
