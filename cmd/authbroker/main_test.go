package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/authbroker/internal/domain/model"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"serve"},
		{"migrate"},
		{"tenants", "import"},
		{"tenants", "list"},
		{"tenants", "remove"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil {
			t.Fatalf("команда %v не найдена: %v", path, err)
		}
		if cmd.Name() != path[len(path)-1] {
			t.Errorf("Find(%v) = %q", path, cmd.Name())
		}
	}
}

func TestTenantsImport_RequiresFile(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"--env-file", t.TempDir() + "/missing.env", "tenants", "import"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	if err := root.Execute(); err == nil {
		t.Fatal("ожидалась ошибка без аргумента <file>")
	}
}

func testTenants() []*model.TenantRealm {
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []*model.TenantRealm{
		{Tenant: "acme", BaseURL: "https://kc.example.com", Realm: "acme", ClientID: "authbroker", ClientSecret: "s3cret", UpdatedAt: updated},
		{Tenant: "globex", BaseURL: "https://kc.example.com", Realm: "globex-prod", ClientID: "broker", ClientSecret: "other", UpdatedAt: updated},
	}
}

func TestPrintTenants_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := printTenants(&buf, "text", testTenants()); err != nil {
		t.Fatalf("printTenants: %v", err)
	}

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("ожидалось 3 строки (заголовок + 2), получено %d:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "TENANT") {
		t.Errorf("заголовок = %q", lines[0])
	}
	if !strings.Contains(lines[2], "globex-prod") {
		t.Errorf("строка globex = %q", lines[2])
	}
	if strings.Contains(out, "s3cret") {
		t.Error("секрет клиента попал в вывод")
	}
}

func TestPrintTenants_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printTenants(&buf, "json", testTenants()); err != nil {
		t.Fatalf("printTenants: %v", err)
	}

	var views []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &views); err != nil {
		t.Fatalf("невалидный JSON: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("len = %d, ожидалось 2", len(views))
	}
	if views[0]["tenant"] != "acme" || views[0]["clientId"] != "authbroker" {
		t.Errorf("views[0] = %v", views[0])
	}
	if _, ok := views[0]["clientSecret"]; ok {
		t.Error("секрет клиента попал в JSON")
	}
}
