package subaru

import (
	"embed"
	"runtime"
	"sync/atomic"

	"github.com/gookit/color"
)

// isCriticalAtomic is 1 while a receipt/install phase is in progress.
// The signal handler refuses the first interrupt during that window.
var isCriticalAtomic atomic.Int32

// Global variables
var (
	Prefix     string
	CacheDir   string
	CacheStore string
	BuildRoot  string
	LogsDir    string
	ReceiptDir string
	JobCount   int
	Debug      bool
	Verbose    bool
	TablePath  string
	ConfigFile = "/etc/subaru.conf"
	version    = "dev"     // overridden at build time
	buildDate  = "unknown" // overridden at build time
	arch       = runtime.GOARCH
	// Global executor (assigned in Main)
	BuildExec *Executor
	//go:embed assets/bootstrap.table
	embeddedAssets embed.FS
)

// color helpers
var (
	colInfo    = color.Info // style provided by gookit/color
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
)
