package config

// ConfigBackend is where non-secret settings persist between runs: the
// UserDefaults domain com.aist.app on macOS, a TOML file elsewhere. Keys are
// dotted ("loop.max_words"). Ints and bools are stored natively so the
// backing file stays hand-editable; strings carry everything else,
// durations included ("90s").
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	GetBool(key string) (val bool, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	SetBool(key string, val bool) error
	Delete(key string) error
}
