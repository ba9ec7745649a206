package filestore

// SetWriteFile swaps the persistence function so tests can simulate disk failures.
// A nil fn restores the real atomic writer.
func (s *VaultStore) SetWriteFile(fn func(path string, data []byte) error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if fn == nil {
		fn = atomicWrite
	}
	s.writeFile = fn
}
