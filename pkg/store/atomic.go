package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// writeJSONAtomic marshals v and writes it to path via a temp-file +
// rename, matching the teacher's JSONConversationStore.Save
// (pkg/conversations/json_store.go): rename is atomic on the
// filesystems this engine targets, so readers never observe a partial
// write. A sibling flock guards concurrent writers across processes.
func writeJSONAtomic(path string, v interface{}) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return errors.Wrap(err, "acquire file lock")
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "rename temp file")
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// appendJSONLAtomic appends one JSON line to a JSONL file under the
// sibling flock, used for the append-only history log where a full
// rewrite per message would be wasteful.
func appendJSONLAtomic(path string, v interface{}) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return errors.Wrap(err, "acquire file lock")
	}
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create parent directory")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open history log")
	}
	defer f.Close()

	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal")
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "append history log")
	}
	return f.Sync()
}
