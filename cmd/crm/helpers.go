package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tahakubilay/Full-CRM-Claude/internal/server"
	"github.com/tahakubilay/Full-CRM-Claude/internal/service"
)

// openApp opens the configured database and services. Callers must Close it.
func openApp() (*server.App, error) {
	return server.Open(configFile)
}

// actorID returns the --actor flag as a uuid; unset means the system user.
func actorID() (uuid.UUID, error) {
	if actorFlag == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(actorFlag)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --actor %q: %w", actorFlag, err)
	}
	return id, nil
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, a := range args {
		id, err := service.ParseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseData merges a JSON object with key=value pairs; pairs win.
func parseData(raw string, pairs []string) (map[string]any, error) {
	data := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, fmt.Errorf("invalid --data: %w", err)
		}
	}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", p)
		}
		data[k] = v
	}
	return data, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "02.01.2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q: use YYYY-MM-DD, DD.MM.YYYY or RFC 3339", s)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
