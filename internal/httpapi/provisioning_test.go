package httpapi

import (
	"net/http"
	"testing"

	"tablecast/internal/models"
)

func TestProvisioningFlow(t *testing.T) {
	f := newAPIFixture(t)

	// Session.
	resp := f.request(t, http.MethodPost, "/v1/sessions", testAdminToken,
		map[string]string{"topic": "retrospective"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: got %d, want 201", resp.StatusCode)
	}
	sess := decodeBody[models.Session](t, resp)
	if sess.ID == "" || sess.Topic != "retrospective" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	// Table, with a one-time device token in the response.
	resp = f.request(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/tables", testAdminToken,
		map[string]string{"name": "Table A"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create table: got %d, want 201", resp.StatusCode)
	}
	tbl := decodeBody[tableWithToken](t, resp)
	if tbl.DeviceToken == "" {
		t.Fatal("expected a generated device token")
	}

	// The new token works for device endpoints.
	resp = f.request(t, http.MethodGet, "/v1/tables/"+tbl.ID+"/nudges", tbl.DeviceToken, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("poll with new token: got %d, want 200", resp.StatusCode)
	}

	// Playbook.
	resp = f.request(t, http.MethodPost, "/v1/playbooks", testAdminToken, map[string]any{
		"name":            "Deep Dive",
		"durationMinutes": 45,
		"steps": []map[string]any{
			{"offsetMinutes": 0, "message": "Start"},
			{"offsetMinutes": 40, "message": "Wrap up", "priority": "urgent"},
		},
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create playbook: got %d, want 201", resp.StatusCode)
	}
	pb := decodeBody[models.Playbook](t, resp)
	if pb.ID == "" || len(pb.Steps) != 2 {
		t.Fatalf("unexpected playbook: %+v", pb)
	}
	if pb.Steps[0].Priority != models.PriorityNormal {
		t.Errorf("default priority: got %s, want normal", pb.Steps[0].Priority)
	}
}

func TestCreateTable_UnknownSession(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/v1/sessions/missing/tables", testAdminToken,
		map[string]string{"name": "Table X"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("got %d, want 404", resp.StatusCode)
	}
}

func TestProvisioning_RequiresAdmin(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/v1/sessions", testDeviceToken,
		map[string]string{"topic": "x"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", resp.StatusCode)
	}
}
