package store

func (s *Store) loadVisibility() (map[string][]string, error) {
	visibility := make(map[string][]string)
	if _, err := s.readJSON(visibilityFile, &visibility); err != nil {
		return nil, err
	}
	return visibility, nil
}

// Visibility returns the account names whose events owner may view and
// edit. The owner's own name is always included, even when the persisted
// entry is missing or has lost it.
func (s *Store) Visibility(owner string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	visibility, err := s.loadVisibility()
	if err != nil {
		return nil, err
	}
	visible, ok := visibility[owner]
	if !ok {
		return []string{owner}, nil
	}
	if !contains(visible, owner) {
		visible = append([]string{owner}, visible...)
	}
	return visible, nil
}

// GrantVisibility adds target to owner's visibility set after the caller
// proves knowledge of target's credentials. A repeated grant reports
// ErrAlreadyVisible and leaves the set unchanged.
func (s *Store) GrantVisibility(owner, target, loginID, password string) error {
	if !s.Verify(target, loginID, password) {
		return ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	visibility, err := s.loadVisibility()
	if err != nil {
		return err
	}
	visible, ok := visibility[owner]
	if !ok {
		visible = []string{owner}
	}
	if contains(visible, target) {
		return ErrAlreadyVisible
	}
	visibility[owner] = append(visible, target)
	return s.writeJSON(visibilityFile, visibility)
}

// RemoveVisible drops target from owner's visibility set. Removing the
// own account is rejected; removing an absent target is a no-op.
func (s *Store) RemoveVisible(owner, target string) error {
	if target == owner {
		return ErrRemoveSelf
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	visibility, err := s.loadVisibility()
	if err != nil {
		return err
	}
	visible, ok := visibility[owner]
	if !ok || !contains(visible, target) {
		return nil
	}
	kept := visible[:0]
	for _, name := range visible {
		if name != target {
			kept = append(kept, name)
		}
	}
	visibility[owner] = kept
	return s.writeJSON(visibilityFile, visibility)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
