package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the run.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // correlation ID for a single run invocation
	KeySpanID  = "span_id"  // correlation ID for a single host worker

	// ========================================================================
	// Host & Inventory
	// ========================================================================
	KeyHost      = "host"       // inventory host name
	KeyGroup     = "group"      // inventory group name
	KeyConnector = "connector"  // connector scheme: ssh, local
	KeyScript    = "script"     // task/script identifier passed on the CLI

	// ========================================================================
	// Wire Protocol
	// ========================================================================
	KeyPacket    = "packet"     // packet type name
	KeyPacketID  = "packet_id"  // numeric packet ID

	// ========================================================================
	// Transactions & Operations
	// ========================================================================
	KeyTask      = "task"      // task title set via context.defaults / transaction title
	KeyName      = "name"      // transaction name (the thing being changed)
	KeyOperation = "operation" // operation kind: package, directory, template, git.checkout
	KeyOutcome   = "outcome"   // transaction outcome: unchanged, changed, failed
	KeyDryRun    = "dry_run"   // whether the run is in dry-run/pretend mode

	// ========================================================================
	// File System Operations
	// ========================================================================
	KeyPath     = "path"      // full file/directory path
	KeyType     = "type"      // remote file type: file, directory, symlink, etc.
	KeySize     = "size"      // file size in bytes
	KeyMode     = "mode"      // file mode/permissions (octal string)
	KeyOwner    = "owner"     // owning user
	KeyFileGroup = "file_group" // owning group

	// ========================================================================
	// Process Execution
	// ========================================================================
	KeyCommand    = "command"     // argv[0] or full command line
	KeyReturnCode = "return_code" // process exit code

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyField      = "field"       // offending field name in a validation error
	KeyAttempt    = "attempt"     // retry attempt number
)

// ----------------------------------------------------------------------------
// Field constructors for type safety
// ----------------------------------------------------------------------------

func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }
func SpanID(id string) slog.Attr  { return slog.String(KeySpanID, id) }

func Host(name string) slog.Attr      { return slog.String(KeyHost, name) }
func Group(name string) slog.Attr     { return slog.String(KeyGroup, name) }
func Connector(scheme string) slog.Attr { return slog.String(KeyConnector, scheme) }
func Script(name string) slog.Attr    { return slog.String(KeyScript, name) }

func Packet(name string) slog.Attr   { return slog.String(KeyPacket, name) }
func PacketID(id uint32) slog.Attr   { return slog.Any(KeyPacketID, id) }

func Task(title string) slog.Attr    { return slog.String(KeyTask, title) }
func Name(name string) slog.Attr     { return slog.String(KeyName, name) }
func Operation(op string) slog.Attr  { return slog.String(KeyOperation, op) }
func Outcome(outcome string) slog.Attr { return slog.String(KeyOutcome, outcome) }
func DryRun(dry bool) slog.Attr      { return slog.Bool(KeyDryRun, dry) }

func Path(p string) slog.Attr        { return slog.String(KeyPath, p) }
func TypeStr(t string) slog.Attr     { return slog.String(KeyType, t) }
func Size(s uint64) slog.Attr        { return slog.Uint64(KeySize, s) }
func Mode(m string) slog.Attr        { return slog.String(KeyMode, m) }
func Owner(name string) slog.Attr    { return slog.String(KeyOwner, name) }
func FileGroup(name string) slog.Attr { return slog.String(KeyFileGroup, name) }

func Command(cmd string) slog.Attr    { return slog.String(KeyCommand, cmd) }
func ReturnCode(code int32) slog.Attr { return slog.Int(KeyReturnCode, int(code)) }

func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

func Field(name string) slog.Attr  { return slog.String(KeyField, name) }
func Attempt(n int) slog.Attr      { return slog.Int(KeyAttempt, n) }
