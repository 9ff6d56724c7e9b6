package constants

// Chat session defaults
const (
	// DefaultMessagePageLimit is the history page size requested on open.
	DefaultMessagePageLimit = 50

	// DefaultBudgetReloadDelayMs is how long the budget controller waits after
	// a push event before re-reading the budget from the API. The delay lets
	// the backend finish its own write first; it is a documented workaround
	// for read-after-write races, not a consistency guarantee.
	DefaultBudgetReloadDelayMs = 500

	// RecordingTickIntervalSec is the cadence at which elapsed recording time
	// is advanced.
	RecordingTickIntervalSec = 1
)

// HTTP client defaults
const (
	DefaultAPITimeoutSec = 30
)

// Real-time channel defaults
const (
	DefaultReconnectInitialDelayMs = 1000
	DefaultReconnectMaxDelayMs     = 30000
	DefaultReconnectMaxAttempts    = 5
)

// Local server defaults
const (
	DefaultServerPort = 8082
)

// Storage encryption
const (
	NonceSize        = 12
	PBKDF2Iters      = 100000
	EncryptionKeyLen = 32
)
