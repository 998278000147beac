package portero

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

const doorQR = "https://api.example.com/acessos/acesso_com_auto_ligamento/Porta%20Principal"

func doorHandler(t *testing.T, lockID string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /acessos/acesso_com_auto_ligamento/Porta Principal", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			QRCode   string  `json:"qrCode"`
			UserID   string  `json:"usuarioId"`
			Age      int     `json:"idade"`
			Lat      float64 `json:"lat"`
			Long     float64 `json:"long"`
			Accuracy float64 `json:"accuracy"`
			Status   string  `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeJSON(t, w, http.StatusBadRequest, nil)
			return
		}
		if body.Status != "true" || body.UserID == "" {
			writeJSON(t, w, http.StatusBadRequest, map[string]string{"message": "payload incompleto"})
			return
		}
		if lockID == "" {
			writeJSON(t, w, http.StatusOK, map[string]string{"message": "acesso negado"})
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]string{
			"travaId": lockID,
			"message": "porta liberada",
		})
	})
	return mux
}

func openRequest() OpenDoorRequest {
	return OpenDoorRequest{
		QRCode:   doorQR,
		UserID:   "user-1",
		Age:      24,
		Lat:      -23.55,
		Long:     -46.63,
		Accuracy: 5.0,
	}
}

func TestOpenDoorSuccess(t *testing.T) {
	srv := newTestServer(t, doorHandler(t, "lock-42"))
	client := newTestClient(t, srv)
	seedSession(t, client, "access-1", "refresh-1")

	result, err := client.OpenDoor(context.Background(), openRequest())
	if err != nil {
		t.Fatalf("OpenDoor failed: %v", err)
	}
	if !result.Opened || result.LockID != "lock-42" {
		t.Fatalf("result = %+v", result)
	}
	if result.Door != "Porta Principal" {
		t.Fatalf("door label = %q, want Porta Principal", result.Door)
	}
	if got := client.MetricsSnapshot().Counters[MetricDoorOpenSuccess]; got != 1 {
		t.Fatalf("door open metric = %d", got)
	}
}

func TestOpenDoorRejectedWithoutLockID(t *testing.T) {
	srv := newTestServer(t, doorHandler(t, ""))
	client := newTestClient(t, srv)
	seedSession(t, client, "access-1", "refresh-1")

	result, err := client.OpenDoor(context.Background(), openRequest())
	if !errors.Is(err, ErrDoorRejected) {
		t.Fatalf("OpenDoor = %v, want ErrDoorRejected", err)
	}
	if result.Opened {
		t.Fatal("result marked opened on rejection")
	}
	if result.Message != "acesso negado" {
		t.Fatalf("message = %q", result.Message)
	}
}

func TestOpenDoorBlockedUserNeverReachesServer(t *testing.T) {
	hit := false
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		writeJSON(t, w, http.StatusOK, map[string]string{"travaId": "lock-42"})
	}))
	client := newTestClient(t, srv)
	seedSession(t, client, "access-1", "refresh-1")

	client.mu.Lock()
	client.session.User.Disabled = true
	client.mu.Unlock()

	_, err := client.OpenDoor(context.Background(), openRequest())
	if !errors.Is(err, ErrUserBlocked) {
		t.Fatalf("OpenDoor = %v, want ErrUserBlocked", err)
	}
	if hit {
		t.Fatal("blocked user's request reached the server")
	}
	if got := client.MetricsSnapshot().Counters[MetricDoorOpenBlocked]; got != 1 {
		t.Fatalf("blocked metric = %d", got)
	}
}

func TestOpenDoorEmptyQRCode(t *testing.T) {
	srv := newTestServer(t, doorHandler(t, "lock-42"))
	client := newTestClient(t, srv)

	req := openRequest()
	req.QRCode = "   "
	if _, err := client.OpenDoor(context.Background(), req); !errors.Is(err, ErrDoorRejected) {
		t.Fatalf("empty QR = %v, want ErrDoorRejected", err)
	}
}

func TestDoorLabel(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{doorQR, "Porta Principal"},
		{"/acessos/acesso_com_auto_ligamento/Garagem", "Garagem"},
		{"/acessos/acesso_com_auto_ligamento/Garagem?x=1", "Garagem"},
		{"/acessos/outro_endpoint/Porta", "desconhecida"},
		{"", "desconhecida"},
	}
	for _, tc := range cases {
		if got := DoorLabel(tc.in); got != tc.want {
			t.Errorf("DoorLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAccessHistory(t *testing.T) {
	now := time.Date(2024, 6, 15, 8, 30, 0, 0, time.UTC)
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acessos/usuario/user-1" {
			writeJSON(t, w, http.StatusNotFound, nil)
			return
		}
		writeJSON(t, w, http.StatusOK, []AccessRecord{
			{DeviceID: "device-1", Lat: -23.55, Long: -46.63, Timestamp: now},
		})
	}))
	client := newTestClient(t, srv)
	seedSession(t, client, "access-1", "refresh-1")

	records, err := client.AccessHistory(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("AccessHistory failed: %v", err)
	}
	if len(records) != 1 || !records[0].Timestamp.Equal(now) {
		t.Fatalf("records = %+v", records)
	}
}
