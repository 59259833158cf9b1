package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/tnissen375/dstack/pkg/client"
)

const DefaultProject = "default"

type ConfigFile struct {
	Hub HubDetails `json:"hub,omitempty"`
}

type HubDetails struct {
	URL     string `json:"url,omitempty"`
	Project string `json:"project,omitempty"`
	Token   string `json:"token,omitempty"`
}

func (h HubDetails) Client(insecure bool) *client.Client {
	auth := ""
	if h.Token != "" {
		auth = "Bearer " + h.Token
	}
	return client.NewClient(h.URL, auth, insecure)
}

var DefaultManager = Manager{
	Path: func() string {
		home, err := os.UserHomeDir()
		if err != nil {
			panic(err)
		}
		return filepath.Join(home, ".dstack", "config.json")
	}(),
}

type Manager struct {
	Path   string
	config ConfigFile
}

func (m *Manager) Set(details HubDetails) error {
	if _, err := url.ParseRequestURI(details.URL); err != nil {
		return fmt.Errorf("invalid url: %s", details.URL)
	}
	if details.Project == "" {
		details.Project = DefaultProject
	}
	if err := m.load(); err != nil {
		return err
	}
	m.config.Hub = details
	return m.save()
}

func (m *Manager) Get() (HubDetails, error) {
	if err := m.load(); err != nil {
		return HubDetails{}, err
	}
	if m.config.Hub.URL == "" {
		return HubDetails{}, fmt.Errorf("hub not configured, run 'dstack config' first")
	}
	if m.config.Hub.Project == "" {
		m.config.Hub.Project = DefaultProject
	}
	return m.config.Hub, nil
}

func (m *Manager) load() error {
	content, err := os.ReadFile(m.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(m.Path), 0o755); err != nil {
			return err
		}
		content = []byte("{}")
	}
	return json.Unmarshal(content, &m.config)
}

func (m *Manager) save() error {
	content, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.Path, content, 0o600)
}
