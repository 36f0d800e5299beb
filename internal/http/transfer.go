package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/example/event-catalog/internal/application"
	"github.com/example/event-catalog/internal/transfer"
)

const maxImportBytes = 10 << 20

// requestFormat reads ?format= and falls back to the request content type.
func requestFormat(r *http.Request) (transfer.Format, error) {
	if value := r.URL.Query().Get("format"); value != "" {
		return transfer.ParseFormat(value)
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "text/csv":
		return transfer.FormatCSV, nil
	case transfer.FormatXLSX.ContentType():
		return transfer.FormatXLSX, nil
	default:
		return transfer.FormatJSON, nil
	}
}

func readImportBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		return nil, application.NewParseError("upload", "request body could not be read", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, application.NewParseError("upload", "request body is empty", nil)
	}
	return body, nil
}

func encodeJSONDocument(doc any) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf, nil
}

func encodeTable(format transfer.Format, table transfer.Table) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	if err := transfer.WriteTable(buf, format, table); err != nil {
		return nil, err
	}
	return buf, nil
}

func exportFilename(prefix string, format transfer.Format, now time.Time) string {
	return fmt.Sprintf("%s-%s.%s", prefix, now.Format("2006-01-02"), format)
}
