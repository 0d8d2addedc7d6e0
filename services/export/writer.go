package export

import (
	"encoding/json"
	"os"
	"path/filepath"

	"chatexport/lib/scrapers/chatgpt"
)

// Document is the single output artifact of a run.
type Document struct {
	ExportedAt    int64                  `json:"exported_at"`
	Source        string                 `json:"source"`
	Conversations []chatgpt.Conversation `json:"conversations"`
}

// WriteDocument rewrites the output file atomically: the document is
// serialized to a temp file in the target directory and renamed over the
// destination, so a crash mid-write never leaves a truncated export.
func WriteDocument(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".chatexport-*")
	if err != nil {
		return err
	}

	_, err = tmp.Write(data)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	err = tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
