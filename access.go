package portero

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const doorPathMarker = "acesso_com_auto_ligamento/"

type openDoorPayload struct {
	QRCode   string  `json:"qrCode"`
	UserID   string  `json:"usuarioId"`
	Age      int     `json:"idade"`
	Lat      float64 `json:"lat"`
	Long     float64 `json:"long"`
	Accuracy float64 `json:"accuracy"`
	Status   string  `json:"status"`
}

type openDoorResponse struct {
	LockID  string `json:"travaId"`
	Message string `json:"message"`
}

// OpenDoor describes the opendoor operation and its observable behavior.
//
// OpenDoor may return an error when input validation, dependency calls, or security checks fail.
// OpenDoor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The request path is the scanned QR payload itself: each door encodes its
// own access endpoint. The unlock is acknowledged by the lock identifier in
// the response; any response without one is a rejection.
func (c *Client) OpenDoor(ctx context.Context, req OpenDoorRequest) (DoorResult, error) {
	if err := c.ready(); err != nil {
		return DoorResult{}, err
	}

	door := DoorLabel(req.QRCode)

	c.mu.Lock()
	blocked := c.session.User != nil && c.session.User.Disabled
	c.mu.Unlock()
	if blocked {
		c.metricInc(MetricDoorOpenBlocked)
		c.emitAudit(ctx, auditEventDoorOpen, false, req.UserID, ErrUserBlocked, map[string]string{"door": door})
		return DoorResult{Door: door}, ErrUserBlocked
	}

	path, err := doorPath(req.QRCode)
	if err != nil {
		return DoorResult{Door: door}, err
	}

	var resp openDoorResponse
	if err := c.do(ctx, http.MethodPost, path, openDoorPayload{
		QRCode:   req.QRCode,
		UserID:   req.UserID,
		Age:      req.Age,
		Lat:      req.Lat,
		Long:     req.Long,
		Accuracy: req.Accuracy,
		Status:   "true",
	}, &resp); err != nil {
		c.metricInc(MetricDoorOpenFailure)
		c.emitAudit(ctx, auditEventDoorOpen, false, req.UserID, err, map[string]string{"door": door})
		return DoorResult{Door: door}, err
	}

	if resp.LockID == "" {
		c.metricInc(MetricDoorOpenFailure)
		c.emitAudit(ctx, auditEventDoorOpen, false, req.UserID, ErrDoorRejected, map[string]string{"door": door})
		return DoorResult{Door: door, Message: resp.Message}, ErrDoorRejected
	}

	c.metricInc(MetricDoorOpenSuccess)
	c.emitAudit(ctx, auditEventDoorOpen, true, req.UserID, nil, map[string]string{
		"door": door,
		"lock": resp.LockID,
	})

	return DoorResult{
		Opened:  true,
		LockID:  resp.LockID,
		Door:    door,
		Message: resp.Message,
	}, nil
}

// doorPath extracts the request path from a scanned QR payload. Payloads
// are either a full URL or an already-rooted path.
func doorPath(qr string) (string, error) {
	qr = strings.TrimSpace(qr)
	if qr == "" {
		return "", ErrDoorRejected
	}
	if strings.HasPrefix(qr, "http://") || strings.HasPrefix(qr, "https://") {
		u, err := url.Parse(qr)
		if err != nil || u.Path == "" {
			return "", ErrDoorRejected
		}
		return u.Path, nil
	}
	if !strings.HasPrefix(qr, "/") {
		return "/" + qr, nil
	}
	return qr, nil
}

// DoorLabel extracts the human-readable door name from a QR payload, or
// "desconhecida" when the payload carries none.
func DoorLabel(qr string) string {
	idx := strings.Index(qr, doorPathMarker)
	if idx < 0 {
		return "desconhecida"
	}
	label := qr[idx+len(doorPathMarker):]
	if cut := strings.IndexAny(label, "/?#"); cut >= 0 {
		label = label[:cut]
	}
	if unescaped, err := url.PathUnescape(label); err == nil {
		label = unescaped
	}
	if label == "" {
		return "desconhecida"
	}
	return label
}

// AccessHistory describes the accesshistory operation and its observable behavior.
//
// AccessHistory may return an error when input validation, dependency calls, or security checks fail.
// AccessHistory does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) AccessHistory(ctx context.Context, userID string) ([]AccessRecord, error) {
	var records []AccessRecord
	if err := c.do(ctx, http.MethodGet, "/acessos/usuario/"+url.PathEscape(userID), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}
