package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alertdeck/alertdeck/internal/alerts"
	"github.com/alertdeck/alertdeck/internal/database"
)

// ZabbixAdapter polls active triggers over the Zabbix JSON-RPC API using a
// static API token.
type ZabbixAdapter struct {
	client *http.Client
}

// NewZabbixAdapter creates a new Zabbix adapter
func NewZabbixAdapter() *ZabbixAdapter {
	return &ZabbixAdapter{client: &http.Client{}}
}

// SourceType returns the source type this adapter handles
func (a *ZabbixAdapter) SourceType() database.SourceTypeName {
	return database.SourceTypeZabbix
}

// zabbixRequest is the JSON-RPC envelope for trigger.get
type zabbixRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int         `json:"id"`
}

// zabbixTrigger is one trigger.get result row. Zabbix encodes numbers as
// strings throughout its API.
type zabbixTrigger struct {
	TriggerID   string `json:"triggerid"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	LastChange  string `json:"lastchange"`
	Comments    string `json:"comments"`
	Hosts       []struct {
		Host string `json:"host"`
	} `json:"hosts"`
}

type zabbixResponse struct {
	Result []zabbixTrigger `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    string `json:"data"`
	} `json:"error"`
}

// Fetch queries trigger.get for triggers currently in problem state
func (a *ZabbixAdapter) Fetch(ctx context.Context, src database.SourceConfig) ([]alerts.Alert, error) {
	payload := zabbixRequest{
		JSONRPC: "2.0",
		Method:  "trigger.get",
		Params: map[string]interface{}{
			"output":            []string{"triggerid", "description", "priority", "lastchange", "comments"},
			"selectHosts":       []string{"host"},
			"filter":            map[string]interface{}{"value": 1},
			"monitored":         true,
			"expandDescription": true,
			"sortfield":         "lastchange",
			"sortorder":         "DESC",
		},
		ID: 1,
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, alerts.Malformed("failed to encode trigger.get request", err)
	}

	url := strings.TrimRight(src.URL, "/") + "/api_jsonrpc.php"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, alerts.ConfigInvalid("invalid Zabbix URL %q: %v", src.URL, err)
	}
	req.Header.Set("Content-Type", "application/json-rpc")
	if src.Token != "" {
		req.Header.Set("Authorization", "Bearer "+src.Token)
	}

	body, err := alerts.DoRequest(a.client, req)
	if err != nil {
		return nil, err
	}

	var resp zabbixResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, alerts.Malformed("failed to parse Zabbix response", err)
	}
	if resp.Error != nil {
		return nil, alerts.Rejectedf("Zabbix API error %d: %s %s", resp.Error.Code, resp.Error.Message, resp.Error.Data)
	}

	var out []alerts.Alert
	for _, tr := range resp.Result {
		out = append(out, a.normalize(tr, src))
	}
	return out, nil
}

func (a *ZabbixAdapter) normalize(tr zabbixTrigger, src database.SourceConfig) alerts.Alert {
	name := tr.Description
	if name == "" {
		name = "trigger " + tr.TriggerID
	}

	var host string
	if len(tr.Hosts) > 0 {
		host = tr.Hosts[0].Host
	}

	// A missing lastchange leaves eventTime zero so the identity does not
	// churn with the receipt clock.
	var eventTime time.Time
	if unix, err := strconv.ParseInt(tr.LastChange, 10, 64); err == nil && unix > 0 {
		eventTime = time.Unix(unix, 0).UTC()
	}
	ts := eventTime
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	severity := alerts.SeverityInfo
	if p, err := strconv.Atoi(tr.Priority); err == nil {
		severity = alerts.PriorityToSeverity(p)
	}

	message := tr.Comments
	if message == "" {
		message = tr.Description
	}

	return alerts.Alert{
		ID:          alerts.Identity(database.SourceTypeZabbix, src.UUID, tr.TriggerID, name, host, eventTime),
		Source:      database.SourceTypeZabbix,
		SourceID:    src.UUID,
		SourceLabel: src.Name,
		Name:        name,
		Severity:    severity,
		Message:     message,
		Instance:    host,
		Fingerprint: tr.TriggerID,
		Timestamp:   ts,
	}
}
