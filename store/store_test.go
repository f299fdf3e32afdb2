package store

import "os"

func writeRaw(s *Store, name, content string) error {
	return os.WriteFile(s.path(name), []byte(content), 0o644)
}
