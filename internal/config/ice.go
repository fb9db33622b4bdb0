package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"interview_room/native/internal/domain"
)

const (
	envICEServersJSON = "RELAY_ICE_SERVERS_JSON"

	envStunURLs       = "RELAY_STUN_URLS"
	envTurnURLs       = "RELAY_TURN_URLS"
	envTurnUsername   = "RELAY_TURN_USERNAME"
	envTurnCredential = "RELAY_TURN_CREDENTIAL"
)

func parseICEServersFromValues(iceServersJSON, stunURLs, turnURLs, turnUsername, turnCredential string) ([]domain.ICEServer, error) {
	if raw := strings.TrimSpace(iceServersJSON); raw != "" {
		servers, err := ParseICEServersJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envICEServersJSON, err)
		}
		return servers, nil
	}
	return ParseICEServersFromConvenienceEnv(stunURLs, turnURLs, turnUsername, turnCredential)
}

// ParseICEServersJSON parses a browser style iceServers array.
func ParseICEServersJSON(raw string) ([]domain.ICEServer, error) {
	var servers []domain.ICEServer
	if err := json.Unmarshal([]byte(raw), &servers); err != nil {
		return nil, err
	}

	out := make([]domain.ICEServer, 0, len(servers))
	for i, s := range servers {
		var urls domain.URLList
		for _, u := range s.AllURLs() {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		server := domain.ICEServer{
			URLs:       urls,
			Username:   strings.TrimSpace(s.Username),
			Credential: strings.TrimSpace(s.Credential),
		}
		if err := validateICEServer(server); err != nil {
			return nil, fmt.Errorf("iceServers[%d]: %w", i, err)
		}
		out = append(out, server)
	}
	return out, nil
}

// ParseICEServersFromConvenienceEnv builds an ICE server list from
// comma-separated STUN and TURN URL lists.
func ParseICEServersFromConvenienceEnv(stunURLs, turnURLs, turnUsername, turnCredential string) ([]domain.ICEServer, error) {
	stunList := splitCommaSeparated(stunURLs)
	turnList := splitCommaSeparated(turnURLs)

	var servers []domain.ICEServer
	if len(stunList) > 0 {
		server := domain.ICEServer{URLs: stunList}
		if err := validateICEServer(server); err != nil {
			return nil, fmt.Errorf("%s: %w", envStunURLs, err)
		}
		servers = append(servers, server)
	}

	if len(turnList) > 0 {
		turnUsername = strings.TrimSpace(turnUsername)
		turnCredential = strings.TrimSpace(turnCredential)
		if turnUsername == "" || turnCredential == "" {
			return nil, fmt.Errorf("%s/%s: both must be set when %s is set", envTurnUsername, envTurnCredential, envTurnURLs)
		}
		server := domain.ICEServer{URLs: turnList, Username: turnUsername, Credential: turnCredential}
		if err := validateICEServer(server); err != nil {
			return nil, fmt.Errorf("%s: %w", envTurnURLs, err)
		}
		servers = append(servers, server)
	}
	return servers, nil
}

func splitCommaSeparated(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validateICEServer(server domain.ICEServer) error {
	if len(server.URLs) == 0 {
		return errors.New("missing urls")
	}

	needsCreds := false
	for _, u := range server.URLs {
		switch {
		case strings.HasPrefix(u, "turn:"), strings.HasPrefix(u, "turns:"):
			needsCreds = true
		case strings.HasPrefix(u, "stun:"), strings.HasPrefix(u, "stuns:"):
		default:
			return fmt.Errorf("unsupported url scheme: %q", u)
		}
	}
	if needsCreds && (server.Username == "" || server.Credential == "") {
		return errors.New("turn urls require username and credential")
	}
	return nil
}
