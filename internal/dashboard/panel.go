package dashboard

import "maps"

// Panel is the UI state around the map: the filter panel and the modals.
// Panel values are replaced, never mutated in place.
type Panel struct {
	Tab    string          `json:"tab"`
	Open   bool            `json:"open"`
	Modals map[string]bool `json:"modals"`
}

// NewPanel returns the panel as it looks when a dashboard mounts: open, on
// the first filter tab, with the modals flagged OpenOnLoad visible.
func NewPanel(cfg *Config) Panel {
	p := Panel{Open: true, Modals: make(map[string]bool, len(cfg.Modals))}
	if len(cfg.Categories) > 0 {
		p.Tab = cfg.Categories[0].Key
	}
	for _, m := range cfg.Modals {
		p.Modals[m.ID] = m.OpenOnLoad
	}
	return p
}

func (p Panel) withModal(id string, visible bool) Panel {
	p.Modals = maps.Clone(p.Modals)
	p.Modals[id] = visible
	return p
}

// PanelChange is a batch of panel interactions. Nil fields are left alone.
type PanelChange struct {
	Tab         *string `json:"tab,omitempty"`
	Open        *bool   `json:"open,omitempty"`
	TogglePanel bool    `json:"togglePanel,omitempty"`
	OpenModal   string  `json:"openModal,omitempty"`
	CloseModal  string  `json:"closeModal,omitempty"`
	ToggleModal string  `json:"toggleModal,omitempty"`
}
