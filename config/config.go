package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hlboard/internal/clients"
	"github.com/hlboard/internal/services/poller"
)

// DefaultDeleteSecret gates the delete action when nothing else is
// configured. It is a confirmation secret against accidental deletes, not
// authentication; set HLBOARD_DELETE_SECRET for anything less guessable.
const DefaultDeleteSecret = "6000"

type Config struct {
	APIBaseURL   string
	DataDir      string
	RegistryFile string
	NotesDir     string
	JournalDir   string
	PollInterval time.Duration
	HTTPTimeout  time.Duration
	ListenAddr   string
	DeleteSecret string
	TLSDomains   []string
	CertCacheDir string
}

type configTmp struct {
	APIBaseURL      string   `yaml:"api_base_url,omitempty"`
	DataDir         string   `yaml:"data_dir,omitempty"`
	RegistryFile    string   `yaml:"registry_file,omitempty"`
	NotesDir        string   `yaml:"notes_dir,omitempty"`
	JournalDir      string   `yaml:"journal_dir,omitempty"`
	PollIntervalStr string   `yaml:"poll_interval,omitempty"`
	HTTPTimeoutStr  string   `yaml:"http_timeout,omitempty"`
	ListenAddr      string   `yaml:"listen_addr,omitempty"`
	DeleteSecret    string   `yaml:"delete_secret,omitempty"`
	TLSDomains      []string `yaml:"tls_domains,omitempty"`
	CertCacheDir    string   `yaml:"cert_cache_dir,omitempty"`
}

// Get resolves configuration from, in order of precedence: environment
// variables (after loading a .env file when present), a YAML file passed via
// --config, and CLI flags with defaults.
func Get() (Config, error) {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to yaml config")
	listenAddr := flag.String("listen", ":8080", "dashboard listen address")
	dataDir := flag.String("datadir", "data", "directory for per-dashboard series files")
	registryFile := flag.String("registry", "dashboards.json", "dashboard registry file")
	pollInterval := flag.Duration("pollinterval", poller.DefaultInterval, "refresh tick interval")
	flag.Parse()

	cfg := Config{
		APIBaseURL:   clients.DefaultBaseURL,
		DataDir:      *dataDir,
		RegistryFile: *registryFile,
		NotesDir:     "notes",
		JournalDir:   "wal/snapshots",
		PollInterval: *pollInterval,
		HTTPTimeout:  clients.DefaultTimeout,
		ListenAddr:   *listenAddr,
		DeleteSecret: DefaultDeleteSecret,
	}

	if *configPath != "" {
		var err error
		cfg, err = applyYaml(cfg, *configPath)
		if err != nil {
			return Config{}, err
		}
	}

	if secret := os.Getenv("HLBOARD_DELETE_SECRET"); secret != "" {
		cfg.DeleteSecret = secret
	}
	if base := os.Getenv("HLBOARD_API_BASE_URL"); base != "" {
		cfg.APIBaseURL = base
	}
	if domains := os.Getenv("HLBOARD_TLS_DOMAINS"); domains != "" {
		cfg.TLSDomains = strings.Split(domains, ",")
	}

	return cfg, nil
}

func applyYaml(cfg Config, path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return Config{}, err
	}

	if tmp.APIBaseURL != "" {
		cfg.APIBaseURL = tmp.APIBaseURL
	}
	if tmp.DataDir != "" {
		cfg.DataDir = tmp.DataDir
	}
	if tmp.RegistryFile != "" {
		cfg.RegistryFile = tmp.RegistryFile
	}
	if tmp.NotesDir != "" {
		cfg.NotesDir = tmp.NotesDir
	}
	if tmp.JournalDir != "" {
		cfg.JournalDir = tmp.JournalDir
	}
	if tmp.ListenAddr != "" {
		cfg.ListenAddr = tmp.ListenAddr
	}
	if tmp.DeleteSecret != "" {
		cfg.DeleteSecret = tmp.DeleteSecret
	}
	if len(tmp.TLSDomains) > 0 {
		cfg.TLSDomains = tmp.TLSDomains
	}
	if tmp.CertCacheDir != "" {
		cfg.CertCacheDir = tmp.CertCacheDir
	}

	if tmp.PollIntervalStr != "" {
		d, err := time.ParseDuration(tmp.PollIntervalStr)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'poll_interval' param in yaml config: %w", err)
		}
		cfg.PollInterval = d
	}
	if tmp.HTTPTimeoutStr != "" {
		d, err := time.ParseDuration(tmp.HTTPTimeoutStr)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'http_timeout' param in yaml config: %w", err)
		}
		cfg.HTTPTimeout = d
	}

	return cfg, nil
}
