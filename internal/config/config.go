package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Version is injected via -ldflags.
var Version = "dev"

// UserAgent identifies the HTTP client used for remote vCard imports.
var UserAgent = "Rappel-Anniv/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName        = "Rappel Anniv"
	AppID          = "com.github.tartampluch.rappel-anniv"
	KeyringService = "com.github.tartampluch.rappel-anniv"
	EnvPrefix      = "RAPPEL_"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion       = "version"
	FlagDebug         = "debug"
	FlagConfig        = "config"
	FlagAddr          = "addr"
	FlagDBDriver      = "db-driver"
	FlagDBDSN         = "db-dsn"
	FlagRedisURL      = "redis-url"
	FlagLanguage      = "lang"
	FlagLogFile       = "log-file"
	FlagCookieSecure  = "cookie-secure"
	FlagAdminEmail    = "admin-email"
	FlagAdminPassword = "admin-password"

	FlagDescVersion       = "Show application version and exit"
	FlagDescDebug         = "Enable debug logging"
	FlagDescConfig        = "Path to a YAML configuration file"
	FlagDescAddr          = "HTTP listen address"
	FlagDescDBDriver      = "Storage driver: sqlite, postgres or memory"
	FlagDescDBDSN         = "Storage data source name (file path or connection URL)"
	FlagDescRedisURL      = "Redis URL for the session store (memory store when empty)"
	FlagDescLanguage      = "Default language for messages and calendar summaries"
	FlagDescLogFile       = "Also write JSON logs to this file"
	FlagDescCookieSecure  = "Mark the session cookie as Secure (HTTPS only)"
	FlagDescAdminEmail    = "Bootstrap administrator email (created or promoted on startup)"
	FlagDescAdminPassword = "Bootstrap administrator password"

	MsgVersionOutput = "%s version %s (%s/%s)\n"
)

// -----------------------------------------------------------------------------
// Environment Variables
// -----------------------------------------------------------------------------

const (
	EnvConfig        = EnvPrefix + "CONFIG"
	EnvAddr          = EnvPrefix + "ADDR"
	EnvDBDriver      = EnvPrefix + "DB_DRIVER"
	EnvDBDSN         = EnvPrefix + "DB_DSN"
	EnvRedisURL      = EnvPrefix + "REDIS_URL"
	EnvLanguage      = EnvPrefix + "LANG"
	EnvCookieSecure  = EnvPrefix + "COOKIE_SECURE"
	EnvAdminEmail    = EnvPrefix + "ADMIN_EMAIL"
	EnvAdminPassword = EnvPrefix + "ADMIN_PASSWORD"
	EnvSessionTTL    = EnvPrefix + "SESSION_TTL"
	EnvTestRedisURL  = EnvPrefix + "TEST_REDIS_URL"
	EnvTestPGDSN     = EnvPrefix + "TEST_POSTGRES_DSN"
)

// SupportedLanguages defines the list of available message languages (ISO 639-1).
var SupportedLanguages = []string{"en", "fr"}

// -----------------------------------------------------------------------------
// Storage
// -----------------------------------------------------------------------------

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	DefaultDBDriver = DriverSQLite
	DefaultDBDSN    = "rappel-anniv.db"

	// SecretKeyringPrefix marks a setting whose value lives in the OS keyring.
	SecretKeyringPrefix = "keyring:"

	DateFormatStorage      = "2006-01-02"
	TimestampFormatStorage = time.RFC3339Nano
)

// -----------------------------------------------------------------------------
// Default Values & Business Logic
// -----------------------------------------------------------------------------

const (
	DefaultAddr          = ":8080"
	DefaultLanguage      = "en"
	DefaultUpcomingDays  = 30
	DefaultLeapYear      = 2000 // Year used for vCard dates without a year (--MM-DD)
	MinPasswordLength    = 6
	UIDSalt              = "rappel-anniv-v1-" // Salt for deterministic calendar UIDs
)

// ISO8601 Duration Components for Reminders
const (
	ISOPeriodPrefix   = "P"
	ISONegativePrefix = "-P"
	ISOTimePrefix     = "T"
	ISODay            = "D"
	ISOHour           = "H"
	ISOMinute         = "M"
)

// -----------------------------------------------------------------------------
// Reminder Units & Directions
// -----------------------------------------------------------------------------

const (
	UnitDays    = "d"
	UnitHours   = "h"
	UnitMinutes = "m"
	DirBefore   = "before"
	DirAfter    = "after"
)

// -----------------------------------------------------------------------------
// Sessions & Authentication
// -----------------------------------------------------------------------------

const (
	SessionCookieName  = "rappel_anniv_sid"
	SessionKeyPrefix   = "session:"
	DefaultSessionTTL  = 30 * 24 * time.Hour
	LoginRatePerMinute = 10
	LoginRateBurst     = 5
	LimiterIdleTTL     = 1 * time.Hour
	LimiterSweepEvery  = 10 * time.Minute
	BasicAuthRealm     = `Basic realm="` + AppName + `", charset="UTF-8"`
)

// -----------------------------------------------------------------------------
// Redis
// -----------------------------------------------------------------------------

const (
	RedisPoolSize     = 10
	RedisMinIdleConns = 2
	RedisDialTimeout  = 5 * time.Second
	RedisReadTimeout  = 3 * time.Second
	RedisWriteTimeout = 3 * time.Second
)

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyEvtSummary      = "event_summary"       // Requires Name
	TKeyEvtSummaryAge   = "event_summary_age"   // Requires Name, Age
	TKeyEvtSummaryBirth = "event_summary_birth" // Requires Name (For age 0)
	TKeyCalName         = "calendar_name"

	TKeyLabelToday    = "label_today"
	TKeyLabelTomorrow = "label_tomorrow"
	TKeyLabelInDays   = "label_in_days" // Requires Count

	TKeyErrUnauthenticated = "err_unauthenticated"
	TKeyErrBadCredentials  = "err_bad_credentials"
	TKeyErrForbidden       = "err_forbidden"
	TKeyErrGroupForbidden  = "err_group_forbidden"
	TKeyErrNotFound        = "err_not_found"
	TKeyErrUserNotFound    = "err_user_not_found"
	TKeyErrGroupNotFound   = "err_group_not_found"
	TKeyErrBdayNotFound    = "err_birthday_not_found"
	TKeyErrMemberNotFound  = "err_member_not_found"
	TKeyErrEmailTaken      = "err_email_taken"
	TKeyErrAlreadyMember   = "err_already_member"
	TKeyErrConflict        = "err_conflict"
	TKeyErrInvalidRole     = "err_invalid_role"
	TKeyErrInvalidEmail    = "err_invalid_email"
	TKeyErrPasswordShort   = "err_password_short"
	TKeyErrNameRequired    = "err_name_required"
	TKeyErrInvalidDate     = "err_invalid_date"
	TKeyErrInvalidWindow   = "err_invalid_window"
	TKeyErrInvalidID       = "err_invalid_id"
	TKeyErrInvalidBody     = "err_invalid_body"
	TKeyErrInvalidReminder = "err_invalid_reminder"
	TKeyErrImportSource    = "err_import_source"
	TKeyErrTooManyRequests = "err_too_many_requests"
	TKeyErrInternal        = "err_internal"
)

// -----------------------------------------------------------------------------
// Standards: iCalendar & vCard
// -----------------------------------------------------------------------------

const (
	// iCal Properties
	ICalVersion   = "2.0"
	ICalProdid    = "-//Rappel Anniv//Calendar//EN"
	ICalCalName   = "Birthdays"
	ICalMethod    = "PUBLISH"
	ICalScale     = "GREGORIAN"
	ICalComponent = "VALARM"
	ICalAction    = "DISPLAY"
	ICalDomain    = "rappel-anniv"

	// iCal/vCard Fields
	PropUID         = "UID"
	PropSummary     = "SUMMARY"
	PropDTStart     = "DTSTART"
	PropDTStamp     = "DTSTAMP"
	PropRefresh     = "REFRESH-INTERVAL"
	PropAction      = "ACTION"
	PropDescription = "DESCRIPTION"
	PropTrigger     = "TRIGGER"
	PropVersion     = "VERSION"
	PropProdid      = "PRODID"
	PropXWRCalName  = "X-WR-CALNAME"
	PropCalScale    = "CALSCALE"
	PropMethod      = "METHOD"

	VCardBDAY = "BDAY"
	VCardFN   = "FN"
	VCardN    = "N"
	VCardNote = "NOTE"

	DefaultICalRefresh = 1 * time.Hour
)

// -----------------------------------------------------------------------------
// Data Formats & Limits
// -----------------------------------------------------------------------------

const (
	// Date layouts used for parsing vCard BDAY fields
	DateFormatFullDash  = "2006-01-02"
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"
	DateFormatNoYearD   = "--01-02"
	DateFormatNoYearB   = "--0102"

	// UID Generation
	UIDHashLength   = 16
	FormatHashInput = "%s|%s|%s"
	FormatUID       = "%s-%d@%s"

	MaxImportSize  = 16 * 1024 * 1024
	MaxRequestBody = 1 * 1024 * 1024
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
)

// -----------------------------------------------------------------------------
// HTTP Routes
// -----------------------------------------------------------------------------

const (
	RouteAPI       = "/api"
	RouteHealth    = "/healthz"
	RouteMetrics   = "/metrics"
	RouteRegister  = "/register"
	RouteLogin     = "/login"
	RouteLogout    = "/logout"
	RouteMe        = "/user"
	RouteUsers     = "/users"
	RouteUserRole  = "/users/{id}/role"
	RouteGroups    = "/groups"
	RouteGroup     = "/groups/{id}"
	RouteMembers   = "/groups/{id}/members"
	RouteMember    = "/groups/{id}/members/{userID}"
	RouteImport    = "/groups/{id}/import"
	RouteBirthdays = "/birthdays"
	RouteBirthday  = "/birthdays/{id}"
	RouteStats     = "/stats"
	RouteCalendar  = "/calendar.ics"

	ParamID       = "id"
	ParamUserID   = "userID"
	QueryGroupID  = "groupId"
	QueryUpcoming = "upcoming"
	QuerySearch   = "search"
	QueryRemind   = "remind"
	QueryUnit     = "unit"
	QueryDir      = "dir"
	QueryLang     = "lang"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderRetryAfter      = "Retry-After"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderAcceptLanguage  = "Accept-Language"
	HeaderWWWAuthenticate = "WWW-Authenticate"

	MimeJSON            = "application/json; charset=utf-8"
	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeVCard           = "text/vcard"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrServerStartup   = "server startup failed"
	ErrServerShutdown  = "server shutdown failed"
	ErrAddrRequired    = "listen address is required"
	ErrInvalidURL      = "invalid URL structure"
	ErrProtocol        = "unsupported protocol scheme (http/https only)"
	ErrVCardParse      = "failed to parse vCard stream"
	ErrICalEncode      = "failed to encode iCalendar data"
	ErrDateParse       = "unable to parse date"
	ErrLogFile         = "failed to open log file"
	ErrAppFailed       = "application failed unexpectedly"
	ErrWriteResp       = "failed to write response body"
	ErrLocalesAccess   = "failed to access embedded locales"
	ErrLocaleLoad      = "failed to load locale file"
	ErrConfigRead      = "failed to read configuration file"
	ErrConfigParse     = "failed to parse configuration file"
	ErrConfigInvalid   = "invalid configuration"
	ErrSecretResolve   = "failed to resolve secret from keyring"
	ErrStoreOpen       = "failed to open storage"
	ErrStoreMigrate    = "failed to migrate storage"
	ErrStoreQuery      = "storage query failed"
	ErrDriverUnknown   = "unsupported storage driver"
	ErrRedisConnect    = "failed to connect to redis"
	ErrSessionStore    = "session store failure"
	ErrPasswordHash    = "failed to hash password"
	ErrAdminBootstrap  = "failed to bootstrap administrator"
	ErrUpcomingCompute = "upcoming birthday computation failed"
	ErrImportSource    = "failed to fetch remote address book"
	ErrImportTooLarge  = "remote address book exceeds the size limit"
)

// -----------------------------------------------------------------------------
// Fallbacks & Defaults
// -----------------------------------------------------------------------------

const (
	FallbackSummary      = "Birthday: %s"
	FallbackName         = "Unknown"

	// StubVCalendar is the minimal valid iCalendar object used when no events are found.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"
)

// -----------------------------------------------------------------------------
// Log Messages
// -----------------------------------------------------------------------------

const (
	MsgAppStarting     = "Starting application"
	MsgAppStop         = "Application stopped gracefully"
	MsgServerListen    = "HTTP server listening"
	MsgServerStop      = "Shutting down HTTP server..."
	MsgRequest         = "HTTP request"
	MsgRequestFailed   = "HTTP request failed"
	MsgStoreReady      = "Storage ready"
	MsgSessionsReady   = "Session store ready"
	MsgAdminReady      = "Administrator account ready"
	MsgUserRegistered  = "User registered"
	MsgUserLoggedIn    = "User logged in"
	MsgLoginFailed     = "Login failed"
	MsgLoginThrottled  = "Login throttled"
	MsgRoleChanged     = "User role changed"
	MsgGroupCreated    = "Group created"
	MsgGroupDeleted    = "Group deleted"
	MsgMemberAdded     = "Member added"
	MsgMemberRemoved   = "Member removed"
	MsgBdayCreated     = "Birthday created"
	MsgBdayDeleted     = "Birthday deleted"
	MsgUpcomingQueried = "Upcoming birthdays computed"
	MsgImportDone      = "vCard import finished"
	MsgSkippedCard     = "Skipping malformed vCard"
	MsgSkippedDate     = "Skipping invalid date format"
	MsgGenSuccess      = "Calendar generation successful"
	MsgBdayToday       = "Birthday found today"
	MsgLocaleSkip      = "Skipping non-locale file"
	MsgLocaleBadName   = "Skipping malformed locale filename"
	MsgLocaleLoaded    = "Locale loaded successfully"
	MsgTransMissing    = "Missing translation key"
	MsgLogWarning      = "Warning: %s at %s: %v\n"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyFile      = "file"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyAddr      = "addr"
	LogKeyDriver    = "driver"
	LogKeyMethod    = "method"
	LogKeyRoute     = "route"
	LogKeyRequestID = "request_id"
	LogKeyUserID    = "user_id"
	LogKeyGroupID   = "group_id"
	LogKeyBdayID    = "birthday_id"
	LogKeyRole      = "role"
	LogKeyIP        = "ip"
	LogKeyWindow    = "window_days"
	LogKeyTotal     = "total_cards"
	LogKeyFound     = "birthdays_found"
	LogKeyToday     = "birthdays_today"
	LogKeyCreated   = "created"
	LogKeySkipped   = "skipped"
	LogKeySizeBytes = "size_bytes"
	LogKeyValue     = "value"
	LogKeyStats     = "stats"
	LogKeyDOB       = "date_of_birth"
	LogKeyDuration  = "duration_ms"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompEngine   = "engine"
	CompServer   = "server"
	CompFetcher  = "fetcher"
	CompMain     = "main"
	CompI18n     = "i18n"
	CompStorage  = "storage"
	CompAuth     = "auth"
	CompService  = "service"
	CompSecrets  = "secrets"
	CompSessions = "sessions"
)
