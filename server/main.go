/******************************************************************************
 *
 *  Description :
 *
 *    Setup & initialization.
 *
 *****************************************************************************/

package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	jcr "github.com/tinode/jsonco"

	"github.com/newshub/newshub/server/auth"
	"github.com/newshub/newshub/server/logs"
)

// Default XTEA key for session id obfuscation. Replace in production via
// `uid_key` in the config file.
const defaultUidKey = "wfaY2RgF2S1OQI/ZlK+LSQ=="

var globals struct {
	hub          *Hub
	sessionStore *SessionStore
	push         *Dispatcher
	uidGen       uidGenerator

	// Maximum allowed size of an inbound frame, bytes.
	maxFrameSize int

	// Channel for stats updates, nil if stats are disabled.
	statsUpdate chan *varUpdate
}

type configType struct {
	// Address and port to listen on for client connections.
	Listen string `json:"listen"`
	// Address and port of the debug HTTP listener, "" to disable.
	Expvar string `json:"expvar"`
	// URL path of the exposed expvar variables.
	ExpvarPath string `json:"expvar_path"`
	// Maximum size of an inbound frame in bytes, 0 for the built-in default.
	MaxFrameSize int `json:"max_frame_size"`
	// Bound on a single notification delivery attempt, seconds.
	NotifyTimeout int `json:"notify_timeout"`
	// Number of workers delivering notifications.
	NotifyWorkers int `json:"notify_workers"`
	// Substrings which make published content rejected. Null for the
	// built-in default list.
	ForbiddenWords []string `json:"forbidden_words"`
	// 16 random bytes (base64-encoded) used to obfuscate session ids.
	UidKey []byte `json:"uid_key"`
}

func main() {
	logs.Init(os.Stdout, log.LstdFlags|log.Lshortfile)
	logs.Info.Printf("Server pid=%d started", os.Getpid())

	var configfile = flag.String("config", "./newshub.conf", "Path to config file.")
	var listenOn = flag.String("listen", "", "Override config value for address and port to listen on.")
	var expvarOn = flag.String("expvar", "", "Override config value for the debug HTTP listener.")
	flag.Parse()

	var config configType
	if file, err := os.Open(*configfile); err != nil {
		logs.Warn.Println("Config file not read, using defaults:", err)
	} else {
		jr := jcr.New(file)
		if err = json.NewDecoder(jr).Decode(&config); err != nil {
			switch jerr := err.(type) {
			case *json.UnmarshalTypeError:
				lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
				logs.Err.Fatalf("Unmarshall error in config file in %s at %d:%d (offset %d bytes): %s",
					jerr.Field, lnum, cnum, jerr.Offset, jerr.Error())
			case *json.SyntaxError:
				lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
				logs.Err.Fatalf("Syntax error in config file at %d:%d (offset %d bytes): %s",
					lnum, cnum, jerr.Offset, jerr.Error())
			default:
				logs.Err.Fatal("Failed to parse config file: ", err)
			}
		}
		file.Close()
	}

	if *listenOn != "" {
		config.Listen = *listenOn
	}
	if config.Listen == "" {
		config.Listen = ":3333"
	}
	if *expvarOn != "" {
		config.Expvar = *expvarOn
	}

	if len(config.UidKey) == 0 {
		logs.Warn.Println("uid_key is not defined, using default")
		config.UidKey, _ = base64.StdEncoding.DecodeString(defaultUidKey)
	}
	if err := globals.uidGen.Init(1, config.UidKey); err != nil {
		logs.Err.Fatal("Failed to init session id generator: ", err)
	}

	globals.maxFrameSize = config.MaxFrameSize
	globals.hub = newHub(auth.Bcrypt{}, newContentFilter(config.ForbiddenWords))
	globals.sessionStore = NewSessionStore()
	globals.push = newDispatcher(globals.hub, config.NotifyWorkers,
		time.Duration(config.NotifyTimeout)*time.Second)

	if config.Expvar != "" {
		mux := http.NewServeMux()
		if config.ExpvarPath == "" {
			config.ExpvarPath = "/debug/vars"
		}
		statsInit(mux, config.ExpvarPath)
		go func() {
			if err := http.ListenAndServe(config.Expvar, mux); err != nil {
				logs.Err.Println("Debug HTTP listener failed:", err)
			}
		}()
	}

	if err := listenAndServe(config.Listen, signalHandler()); err != nil {
		logs.Err.Fatal(err)
	}

	statsShutdown()
	logs.Info.Println("Server stopped")
}
