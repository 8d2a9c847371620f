package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/core-tools/hsu-game-master/pkg/probe"

	flags "github.com/jessevdk/go-flags"
)

// flagOptions mirrors the game server command line plus a few test knobs
type flagOptions struct {
	Config         string `long:"config" description:"server config file"`
	Port           int    `long:"port" description:"game port"`
	SteamQueryPort int    `long:"steamQueryPort" description:"port answering A2S_INFO"`
	Profiles       string `long:"profiles" description:"profiles directory"`
	CPUCount       int    `long:"cpuCount" description:"cpu count"`
	Mod            string `long:"mod" description:"client mods"`
	ServerMod      string `long:"servermod" description:"server mods"`

	Name        string `long:"name" default:"Fake DayZ Server" description:"reported server name"`
	Map         string `long:"map" default:"chernarusplus" description:"reported map"`
	Players     int    `long:"players" description:"reported player count"`
	MaxPlayers  int    `long:"maxPlayers" default:"60" description:"reported max players"`
	IgnoreTerm  bool   `long:"ignoreterm" description:"ignore SIGTERM so only a kill stops the process"`
	RunDuration int    `long:"runDuration" description:"exit after this many seconds"`
}

// normalizeArgs turns the game server's single dash options (-port=2302) into long options
func normalizeArgs(argv []string) []string {
	normalized := make([]string, 0, len(argv))
	for _, arg := range argv {
		if len(arg) > 1 && strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "--") {
			arg = "-" + arg
		}
		normalized = append(normalized, arg)
	}
	return normalized
}

func main() {
	var opts flagOptions
	var argv []string = normalizeArgs(os.Args[1:])
	// Unknown options are extra args such as -dologs
	var parser = flags.NewParser(&opts, flags.HelpFlag|flags.IgnoreUnknown)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Running Fakeserver, opts: %+v...\n", opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if opts.RunDuration > 0 {
		fmt.Printf("Using RUN DURATION of %d seconds\n", opts.RunDuration)
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.RunDuration)*time.Second)
		defer cancel()
	}

	if opts.IgnoreTerm {
		signal.Ignore(syscall.SIGTERM)
	}

	sig := make(chan os.Signal, 1)
	if opts.IgnoreTerm {
		signal.Notify(sig, os.Interrupt)
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}

	if opts.SteamQueryPort != 0 {
		conn, err := net.ListenPacket("udp", net.JoinHostPort("127.0.0.1", strconv.Itoa(opts.SteamQueryPort)))
		if err != nil {
			fmt.Printf("Failed to listen on steam query port: %v\n", err)
			os.Exit(1)
		}
		defer conn.Close()

		info := &probe.ServerInfo{
			Protocol:    17,
			Name:        opts.Name,
			Map:         opts.Map,
			Folder:      "dayz",
			Game:        "DayZ",
			Players:     opts.Players,
			MaxPlayers:  opts.MaxPlayers,
			Environment: runtimeEnvironment(),
			Version:     "1.25.0",
			GamePort:    opts.Port,
		}
		go answerQueries(conn, info)
	}

	fmt.Printf("Fakeserver is ready\n")

	select {
	case receivedSignal := <-sig:
		fmt.Printf("Fakeserver received signal: %v\n", receivedSignal)
	case <-ctx.Done():
		fmt.Printf("Fakeserver timed out\n")
	}

	fmt.Printf("Fakeserver stopped\n")
}

// answerQueries serves A2S_INFO, demanding a challenge first like current servers do
func answerQueries(conn net.PacketConn, info *probe.ServerInfo) {
	challenge := [4]byte{0x0A, 0x0B, 0x0C, 0x0D}
	buf := make([]byte, 1400)

	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}

		got, ok := probe.ParseInfoRequest(buf[:n])
		if !ok {
			continue
		}

		var reply []byte
		if got == nil || string(got) != string(challenge[:]) {
			reply = probe.EncodeChallenge(challenge)
		} else {
			reply = probe.EncodeInfo(info)
		}
		if _, err := conn.WriteTo(reply, addr); err != nil {
			fmt.Printf("Failed to answer query from %v: %v\n", addr, err)
		}
	}
}

func runtimeEnvironment() string {
	if runtime.GOOS == "windows" {
		return "windows"
	}
	return "linux"
}
