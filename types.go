package portero

import "time"

// User is the server-side account profile. Field names follow the wire
// contract of the access API (Portuguese keys).
type User struct {
	ID        string `json:"_id"`
	Name      string `json:"nome"`
	Email     string `json:"email"`
	CPF       string `json:"cpf"`
	Phone     string `json:"telefone"`
	BirthDate string `json:"dataDeNascimento"`
	Image     string `json:"imgUsuario,omitempty"`
	Disabled  bool   `json:"desabilitarUsuario,omitempty"`
}

// Session is the in-memory authenticated state held by the [Client].
// Invariant: AccessToken and RefreshToken are both present or both empty.
type Session struct {
	User         *User
	AccessToken  string
	RefreshToken string
}

// LoggedIn reports whether the session carries credentials.
func (s Session) LoggedIn() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// AccessRecord is a single door-access log entry. Server-sourced and
// read-only; the client only displays it.
type AccessRecord struct {
	DeviceID  string    `json:"deviceId"`
	Lat       float64   `json:"lat"`
	Long      float64   `json:"long"`
	Timestamp time.Time `json:"timestamp"`
}

// LoginResult is returned by [Client.Login].
type LoginResult struct {
	User         *User  `json:"usuario"`
	AccessToken  string `json:"authToken"`
	RefreshToken string `json:"refreshToken"`
}

// RegisterResult is returned by [Client.Register]. CodeSent reports
// whether the post-creation activation code request succeeded; the account
// exists either way and the caller should proceed to activation entry.
type RegisterResult struct {
	User User
	// Email identifies the new account on the activation screen.
	Email    string
	CodeSent bool
}

// OpenDoorRequest is the input for [Client.OpenDoor]. QRCode is the raw
// scanned payload; it doubles as the request path on the access API.
type OpenDoorRequest struct {
	QRCode   string
	UserID   string
	Age      int
	Lat      float64
	Long     float64
	Accuracy float64
}

// DoorResult is returned by [Client.OpenDoor]. Opened is true when the
// server acknowledged the unlock with a lock identifier.
type DoorResult struct {
	Opened bool
	// LockID is the server-side identifier of the released lock.
	LockID string
	// Door is the human-readable door label parsed from the QR payload,
	// or "desconhecida" when the payload carries none.
	Door    string
	Message string
}

// UserUpdate carries the mutable profile fields for [Client.UpdateUser].
// Zero-valued fields are omitted from the request body.
type UserUpdate struct {
	Name      string `json:"nome,omitempty"`
	Phone     string `json:"telefone,omitempty"`
	BirthDate string `json:"dataDeNascimento,omitempty"`
	Image     string `json:"imgUsuario,omitempty"`
}

// DeletionAck acknowledges a deletion request. Deletion is soft; the
// server discloses its retention window in Message.
type DeletionAck struct {
	Message string `json:"message"`
}
