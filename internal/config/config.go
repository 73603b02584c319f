// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Account is one GitHub account credential in fallback order.
type Account struct {
	Login string
	Token string
}

// Repo names one repository to mirror.
type Repo struct {
	Owner string
	Name  string
}

// Search is one saved issue search to keep refreshed.
type Search struct {
	Owner string
	Name  string
	Query string
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Accounts       []Account
	PublicFallback bool
	Repos          []Repo
	Searches       []Search
	SyncInterval   time.Duration
	ListenAddr     string
	DBPath         string
	RebuildCache   bool
}

// HasAccounts reports whether at least one credential was configured.
func (c *Config) HasAccounts() bool {
	return len(c.Accounts) > 0
}

// Load reads configuration from environment variables and returns a validated
// Config. Accounts (GHMIRROR_ACCOUNTS, comma-separated login:token pairs) are
// optional; without them only public repositories are reachable and only when
// GHMIRROR_PUBLIC_FALLBACK is enabled. Optional variables with defaults:
// GHMIRROR_SYNC_INTERVAL (5m), GHMIRROR_LISTEN_ADDR (127.0.0.1:8080),
// GHMIRROR_DB_PATH (ghmirror.db). GHMIRROR_REPOS is a comma-separated list of
// owner/name entries; GHMIRROR_SEARCHES is a semicolon-separated list of
// owner/name=query entries. GHMIRROR_REBUILD_CACHE=true discards the cache
// file at startup.
func Load() (*Config, error) {
	accounts, err := parseAccounts(os.Getenv("GHMIRROR_ACCOUNTS"))
	if err != nil {
		return nil, err
	}

	syncInterval := 5 * time.Minute
	if v, ok := os.LookupEnv("GHMIRROR_SYNC_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("GHMIRROR_SYNC_INTERVAL has invalid duration %q: %w", v, err)
		}
		syncInterval = parsed
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("GHMIRROR_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "ghmirror.db"
	if v, ok := os.LookupEnv("GHMIRROR_DB_PATH"); ok {
		dbPath = v
	}

	repos, err := parseRepos(os.Getenv("GHMIRROR_REPOS"))
	if err != nil {
		return nil, err
	}

	searches, err := parseSearches(os.Getenv("GHMIRROR_SEARCHES"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Accounts:       accounts,
		PublicFallback: boolEnv("GHMIRROR_PUBLIC_FALLBACK"),
		Repos:          repos,
		Searches:       searches,
		SyncInterval:   syncInterval,
		ListenAddr:     listenAddr,
		DBPath:         dbPath,
		RebuildCache:   boolEnv("GHMIRROR_REBUILD_CACHE"),
	}, nil
}

func boolEnv(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// parseAccounts splits a comma-separated list of login:token pairs. The token
// may itself contain colons; only the first one separates.
func parseAccounts(raw string) ([]Account, error) {
	accounts := []Account{}
	for _, entry := range splitList(raw, ",") {
		login, token, ok := strings.Cut(entry, ":")
		if !ok || login == "" || token == "" {
			return nil, fmt.Errorf("GHMIRROR_ACCOUNTS entry %q: expected login:token", entry)
		}
		accounts = append(accounts, Account{Login: login, Token: token})
	}
	return accounts, nil
}

func parseRepos(raw string) ([]Repo, error) {
	repos := []Repo{}
	for _, entry := range splitList(raw, ",") {
		owner, name, err := splitRepo(entry, "GHMIRROR_REPOS")
		if err != nil {
			return nil, err
		}
		repos = append(repos, Repo{Owner: owner, Name: name})
	}
	return repos, nil
}

// parseSearches splits a semicolon-separated list of owner/name=query
// entries. Semicolons rather than commas because search queries routinely
// contain commas and colons.
func parseSearches(raw string) ([]Search, error) {
	searches := []Search{}
	for _, entry := range splitList(raw, ";") {
		repo, query, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(query) == "" {
			return nil, fmt.Errorf("GHMIRROR_SEARCHES entry %q: expected owner/name=query", entry)
		}

		owner, name, err := splitRepo(strings.TrimSpace(repo), "GHMIRROR_SEARCHES")
		if err != nil {
			return nil, err
		}
		searches = append(searches, Search{Owner: owner, Name: name, Query: strings.TrimSpace(query)})
	}
	return searches, nil
}

func splitRepo(entry, envVar string) (string, string, error) {
	owner, name, ok := strings.Cut(entry, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%s entry %q: expected owner/name", envVar, entry)
	}
	return owner, name, nil
}

func splitList(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
