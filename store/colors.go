package store

// palette is the fixed ten-color pool for the account legend.
var palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// DefaultColor is used for accounts without a registration record.
const DefaultColor = "#999999"

// Colors maps every registered account to its legend color. The color is
// determined by registration position modulo the palette size, so it
// stays stable across reloads.
func (s *Store) Colors() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.loadAccounts()
	if err != nil {
		return nil, err
	}
	colors := make(map[string]string, len(accounts))
	for i, a := range accounts {
		colors[a.Name] = palette[i%len(palette)]
	}
	return colors, nil
}

// ColorFor returns the legend color for account, falling back to
// DefaultColor for unknown names.
func ColorFor(colors map[string]string, account string) string {
	if c, ok := colors[account]; ok {
		return c
	}
	return DefaultColor
}
