package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	tock "github.com/helena-project/tock"
	"github.com/helena-project/tock/internal/npyarchive"
	"github.com/helena-project/tock/internal/sessiondb"
)

var githash = "githash not computed"
var buildDate = "build date not computed"

// makeFileExist checks that dir/filename exists, and creates the directory
// and file if it doesn't.
func makeFileExist(dir, filename string) (string, error) {
	// Replace 1 instance of "$HOME" in the path with the actual home directory.
	if strings.Contains(dir, "$HOME") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = strings.Replace(dir, "$HOME", home, 1)
	}

	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		if err2 := os.MkdirAll(dir, 0775); err2 != nil {
			return "", err2
		}
	}

	fullname := path.Join(dir, filename)
	_, err := os.Stat(fullname)
	if os.IsNotExist(err) {
		f, err2 := os.OpenFile(fullname, os.O_WRONLY|os.O_CREATE, 0664)
		if err2 != nil {
			return "", err2
		}
		f.Close()
	}
	return fullname, nil
}

// setupViper sets up the viper configuration manager: says where to find
// config files and the filename and suffix. Sets some defaults.
func setupViper() error {
	viper.SetDefault("verbose", false)
	viper.SetDefault("portbase", 6500)
	viper.SetDefault("engine", "sim")
	viper.SetDefault("sim.nchan", 8)
	viper.SetDefault("udp.addr", "0.0.0.0:6600")
	viper.SetDefault("udp.nchan", 16)
	viper.SetDefault("udp.minhz", 10)
	viper.SetDefault("udp.maxhz", 500000)
	viper.SetDefault("archive.dir", "")
	viper.SetDefault("clickhouse.enable", false)

	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Printf("Error finding User Home Dir: %s\n", err)
	}
	dotAdcd := filepath.Join(home, ".adcd")
	const filename string = "config"
	const suffix string = ".yaml"
	if _, err := makeFileExist(dotAdcd, filename+suffix); err != nil {
		return err
	}

	viper.SetConfigName(filename)
	viper.AddConfigPath(filepath.FromSlash("/etc/adcd"))
	viper.AddConfigPath(dotAdcd)
	viper.AddConfigPath(".")
	if err = viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %s", err)
	}
	return nil
}

func startLogger(pfname string) *log.Logger {
	probFile, err := os.OpenFile(pfname, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("Could not open log file '%s'", pfname))
	}
	probLogger := log.New(probFile, "", log.LstdFlags)
	probLogger.SetOutput(&lumberjack.Logger{
		Filename:   pfname,
		MaxSize:    10,   // megabytes after which new file is created
		MaxBackups: 4,    // number of backups
		MaxAge:     180,  // days
		Compress:   true, // whether to gzip the backups
	})
	return probLogger
}

// buildEngine constructs the sampling engine named in the configuration.
func buildEngine() tock.SamplingEngine {
	switch strings.ToLower(viper.GetString("engine")) {
	case "udp":
		return tock.NewUDPEngine(viper.GetString("udp.addr"),
			viper.GetInt("udp.nchan"), viper.GetInt("udp.minhz"), viper.GetInt("udp.maxhz"))
	case "sim":
		return tock.NewSimEngine(viper.GetInt("sim.nchan"))
	case "none":
		return nil
	}
	fmt.Printf("Unknown engine %q; running with no device\n", viper.GetString("engine"))
	return nil
}

// dbLogger adapts the sessiondb connection to the driver's SessionLogger.
type dbLogger struct {
	db *sessiondb.Connection
}

func (l dbLogger) SessionStarted(s tock.Session) {}

func (l dbLogger) SessionEnded(s tock.Session) {
	l.db.RecordSession(&sessiondb.SessionMessage{
		ID:      s.ID.String(),
		Mode:    s.Mode.String(),
		Channel: s.Channel,
		FreqHz:  s.FreqHz,
		Start:   s.Start,
		End:     time.Now(),
	})
}

func main() {
	buildDate = strings.Replace(buildDate, ".", " ", -1) // workaround for Make problems
	tock.Build.Date = buildDate
	tock.Build.Githash = githash
	tock.Build.Summary = fmt.Sprintf("adcd version %s (git commit %s)", tock.Build.Version, githash)
	if host, err := os.Hostname(); err == nil {
		tock.Build.Host = host
	} else {
		tock.Build.Host = "host not detected"
	}

	printVersion := flag.Bool("version", false, "print version and quit")
	cpuprofile := flag.String("cpuprofile", "", "write CPU profile to given file")
	memprofile := flag.String("memprofile", "", "write memory profile to given file")
	flag.Parse()

	if *printVersion {
		fmt.Printf("This is adcd version %s\n", tock.Build.Version)
		fmt.Printf("Git commit hash: %s\n", githash)
		fmt.Printf("Build time: %s\n", buildDate)
		fmt.Printf("Built on go version %s\n", runtime.Version())
		fmt.Printf("Running on %d CPUs.\n", runtime.NumCPU())
		os.Exit(0)
	}

	banner := fmt.Sprintf("\nThis is adcd version %s (git commit %s)\n", tock.Build.Version, githash)
	fmt.Print(banner)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	// Start logging problems and updates to 2 log files.
	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	logdir := filepath.Join(home, ".adcd", "logs")
	problemname, err := makeFileExist(logdir, "problems.log")
	if err != nil {
		panic(err)
	}
	logname, err := makeFileExist(logdir, "updates.log")
	if err != nil {
		panic(err)
	}
	tock.ProblemLogger = startLogger(problemname)
	tock.UpdateLogger = startLogger(logname)
	fmt.Printf("Logging problems       to %s\n", problemname)
	fmt.Printf("Logging client updates to %s\n\n", logname)
	tock.UpdateLogger.Printf("\n\n\n\n%s", banner)

	// Find config file, creating it if needed, and read it.
	if err := setupViper(); err != nil {
		panic(err)
	}
	tock.SetVerboseUpdates(viper.GetBool("verbose"))

	adc := tock.NewADC(buildEngine())
	abort := make(chan struct{})
	defer close(abort)

	// Optional session recording to ClickHouse.
	db := sessiondb.DummyConnection()
	if viper.GetBool("clickhouse.enable") {
		db = sessiondb.StartConnection(&sessiondb.ActivityMessage{
			ID:        ulid.Make().String(),
			Hostname:  tock.Build.Host,
			Githash:   githash,
			Version:   tock.Build.Version,
			GoVersion: runtime.Version(),
			CPUs:      runtime.NumCPU(),
			Start:     tock.StartTime,
		}, abort)
		adc.SetSessionLogger(dbLogger{db})
	}

	// Optional archiving of completed capture buffers.
	var archive *npyarchive.Archive
	if dir := viper.GetString("archive.dir"); dir != "" {
		if archive, err = npyarchive.New(dir); err != nil {
			tock.ProblemLogger.Printf("could not open archive directory %s: %v", dir, err)
			archive = nil
		}
	}

	// One subscription slot: compose publishing and archiving in one handler.
	updates := make(chan tock.ClientUpdate, 100)
	publish := tock.EventPublisher(updates)
	nbuffers := 0
	adc.Subscribe(func(e tock.Event) {
		publish(e)
		if archive == nil || e.Buffer == nil {
			return
		}
		data := make([]uint16, e.Buffer.Len())
		for i, v := range e.Buffer.Data() {
			data[i] = uint16(v)
		}
		if _, err := archive.WriteBuffer(e.SessionID.String(), nbuffers, data); err != nil {
			tock.ProblemLogger.Printf("could not archive buffer: %v", err)
		}
		nbuffers++
	})

	tock.SetPortnumbers(viper.GetInt("portbase"))
	go tock.RunClientUpdater(updates, tock.Ports.Status, abort)
	tock.RunRPCServer(tock.NewAdcControl(adc, updates), tock.Ports.RPC)
	writeMemoryProfile(memprofile)
}

// writeMemoryProfile writes the memory use profile to the indicated file.
// If `memprofile` points to an empty string, do not write.
func writeMemoryProfile(memprofile *string) {
	if *memprofile == "" {
		return
	}
	f, err := os.Create(*memprofile)
	if err != nil {
		log.Fatal("could not create memory profile: ", err)
	}
	defer f.Close()
	runtime.GC() // get up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Fatal("could not write memory profile: ", err)
	}
}
