// Copyright (c) 2016 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codegangsta/cli"
	shlex "github.com/flynn-archive/go-shlex"
	log "github.com/golang/glog"
	jsoniter "github.com/json-iterator/go"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/peterh/liner"
	"golang.org/x/sync/errgroup"

	"github.com/westerndigitalcorporation/fdfs/client/fdfs"
	"github.com/westerndigitalcorporation/fdfs/internal/history"
	"github.com/westerndigitalcorporation/fdfs/pkg/tokenbucket"
)

var usage = `
	fdfscli is a tool to interact with a running FastDFS cluster.

	You can use fdfscli in two modes: either issue one command to a given
	cluster or start a command line interpreter to issue commands
	interactively. You can issue just one command by typing something like:

		fdfscli [--tracker <hosts>] [(--setup <setup-commands>)...] <subcommand> [<args>...]

	Alternatively, you can start a command line interpreter by typing:

		fdfscli [--tracker <hosts>] shell

	The trackers are taken, in order of preference, from --tracker, from a
	structured record given with --record, or from the client.conf file given
	with --conf (default ~/.fdfs/client.conf).

	Uploads are remembered in a local history (default ~/.fdfs/history.db), see
	the 'history' subcommand.
`

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fdfsCli is the command line tool.
type fdfsCli struct {
	app *cli.App

	// Client and what it was built from, so it's only rebuilt if the global
	// flags change.
	clt         *fdfs.Client
	cltCacheKey string

	// Upload history. Opened on first use.
	hist *history.DB

	// True if we are running a shell.
	inShell bool

	// True if any command failed.
	failed bool

	out io.Writer
}

// newFdfsCli creates a new fdfsCli object.
func newFdfsCli() *fdfsCli {
	b := &fdfsCli{out: os.Stdout}
	app := cli.NewApp()
	app.Name = "fdfscli"
	app.Usage = usage
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "tracker, t",
			Usage: "Comma-separated tracker hosts",
		},
		cli.IntFlag{
			Name:  "port, p",
			Usage: "Tracker port, used with --tracker",
			Value: 22122,
		},
		cli.DurationFlag{
			Name:  "timeout",
			Usage: "Connect and socket timeout, used with --tracker",
			Value: 30 * time.Second,
		},
		cli.StringFlag{
			Name:  "record",
			Usage: "YAML or JSON file holding host_tuple, port, timeout and name",
		},
		cli.StringFlag{
			Name:  "conf, c",
			Usage: "client.conf style file",
			Value: "~/.fdfs/client.conf",
		},
		cli.StringSliceFlag{
			Name:  "map",
			Usage: "ip=host mapping used to build URLs, may be repeated",
		},
		cli.BoolFlag{
			Name:  "ssl",
			Usage: "Build https URLs",
		},
		cli.BoolFlag{
			Name:  "json",
			Usage: "Print results as JSON",
		},
		cli.StringFlag{
			Name:  "history",
			Usage: "Upload history file, empty to disable",
			Value: "~/.fdfs/history.db",
		},
		cli.StringSliceFlag{
			Name:  "setup",
			Usage: "Commands to run before doing anything else, separated by semicolon",
		},
	}

	metaFlag := cli.StringSliceFlag{
		Name:  "meta, m",
		Usage: "key=value metadata, may be repeated",
	}
	extFlag := cli.StringFlag{
		Name:  "ext, e",
		Usage: "file extension",
	}
	offsetFlag := cli.IntFlag{
		Name:  "offset, o",
		Usage: "offset within the file (default: 0)",
	}
	lengthFlag := cli.IntFlag{
		Name:  "length, l",
		Usage: "number of bytes (unset or 0 means 'all')",
	}

	app.Commands = []cli.Command{
		{
			Name:      "upfile",
			Usage:     "Uploads a local file.",
			ArgsUsage: "<local file>",
			Flags:     []cli.Flag{metaFlag},
			Action:    b.cmdUpFile,
		},
		{
			Name:      "upbuffer",
			Usage:     "Uploads stdin.",
			ArgsUsage: " ",
			Flags:     []cli.Flag{metaFlag, extFlag},
			Action:    b.cmdUpBuffer,
		},
		{
			Name:      "upurl",
			Usage:     "Uploads stdin and prints its URL.",
			ArgsUsage: " ",
			Flags:     []cli.Flag{extFlag},
			Action:    b.cmdUpURL,
		},
		{
			Name:      "upslave",
			Usage:     "Uploads a local file as a slave of a master file.",
			ArgsUsage: "<local file> <master id> <prefix>",
			Flags:     []cli.Flag{metaFlag},
			Action:    b.cmdUpSlave,
		},
		{
			Name:      "upappend",
			Usage:     "Uploads a local file as an appender file.",
			ArgsUsage: "<local file>",
			Flags:     []cli.Flag{metaFlag},
			Action:    b.cmdUpAppend,
		},
		{
			Name:      "upbatch",
			Usage:     "Uploads many local files in parallel.",
			ArgsUsage: "<local file>...",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "parallel",
					Usage: "number of concurrent uploads",
					Value: 4,
				},
				cli.IntFlag{
					Name:  "rate",
					Usage: "upload bandwidth limit in KB/s (0 means no limit)",
				},
				cli.DurationFlag{
					Name:  "timeout",
					Usage: "stop starting uploads after this long (0 means no limit)",
				},
			},
			Action: b.cmdUpBatch,
		},
		{
			Name:      "aupload",
			Usage:     "Uploads a local file without pooling connections, and prints its URL.",
			ArgsUsage: "<local file>",
			Action:    b.cmdAsyncUpload,
		},
		{
			Name:      "append",
			Usage:     "Appends a local file to an appender file.",
			ArgsUsage: "<local file> <appender id>",
			Action:    b.cmdAppend,
		},
		{
			Name:      "modify",
			Usage:     "Overwrites part of an appender file with a local file.",
			ArgsUsage: "<local file> <appender id>",
			Flags:     []cli.Flag{offsetFlag},
			Action:    b.cmdModify,
		},
		{
			Name:      "truncate",
			Usage:     "Truncates an appender file.",
			ArgsUsage: "<appender id>",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "size, s",
					Usage: "new size (default: 0)",
				},
			},
			Action: b.cmdTruncate,
		},
		{
			Name:      "downfile",
			Usage:     "Downloads a file to a local file.",
			ArgsUsage: "<file id> <local file>",
			Flags:     []cli.Flag{offsetFlag, lengthFlag},
			Action:    b.cmdDownFile,
		},
		{
			Name:      "downbuffer",
			Usage:     "Downloads a file to stdout.",
			ArgsUsage: "<file id>",
			Flags:     []cli.Flag{offsetFlag, lengthFlag},
			Action:    b.cmdDownBuffer,
		},
		{
			Name:      "delete",
			Aliases:   []string{"rm"},
			Usage:     "Deletes a file.",
			ArgsUsage: "<file id>",
			Action:    b.cmdDelete,
		},
		{
			Name:      "adelete",
			Usage:     "Deletes a file without pooling connections.",
			ArgsUsage: "<file id>",
			Action:    b.cmdAsyncDelete,
		},
		{
			Name:      "getmeta",
			Usage:     "Prints the metadata of a file.",
			ArgsUsage: "<file id>",
			Action:    b.cmdGetMeta,
		},
		{
			Name:      "setmeta",
			Usage:     "Sets the metadata of a file.",
			ArgsUsage: "<file id>",
			Flags: []cli.Flag{
				metaFlag,
				cli.BoolFlag{
					Name:  "merge",
					Usage: "merge into the existing metadata instead of replacing it",
				},
			},
			Action: b.cmdSetMeta,
		},
		{
			Name:      "info",
			Aliases:   []string{"i"},
			Usage:     "Prints the size, creation time and checksum of a file.",
			ArgsUsage: "<file id>",
			Action:    b.cmdInfo,
		},
		{
			Name:      "listgroup",
			Usage:     "Prints the stats of a group.",
			ArgsUsage: "<group>",
			Action:    b.cmdListGroup,
		},
		{
			Name:   "listall",
			Usage:  "Prints the stats of every group.",
			Action: b.cmdListAll,
		},
		{
			Name:      "listsrv",
			Usage:     "Prints the storage servers of a group.",
			ArgsUsage: "<group> [<storage id>]",
			Action:    b.cmdListServers,
		},
		{
			Name:      "history",
			Usage:     "Prints recent uploads.",
			ArgsUsage: " ",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "n",
					Usage: "number of entries (0 means all)",
					Value: 20,
				},
			},
			Action: b.cmdHistory,
		},
		{
			Name:   "shell",
			Usage:  "Starts a command line interpreter.",
			Action: b.cmdShell,
		},
	}
	app.Before = b.beforeSubcommandRun
	b.app = app
	return b
}

// run starts a command specified by users.
func (b *fdfsCli) run(args []string) error {
	return b.app.Run(args)
}

// stop frees up all resource used by the fdfsCli object.
func (b *fdfsCli) stop() {
	if b.clt != nil {
		b.clt.Close()
		b.clt = nil
	}
	if b.hist != nil {
		b.hist.Close()
		b.hist = nil
	}
}

// fail reports a failed command.
func (b *fdfsCli) fail(format string, args ...interface{}) {
	log.Errorf(format, args...)
	b.failed = true
}

// getConfig builds the tracker configuration from the global flags.
func (b *fdfsCli) getConfig(c *cli.Context) (fdfs.TrackerConfig, error) {
	if hosts := c.GlobalString("tracker"); hosts != "" {
		config := fdfs.ConfigFromHosts(strings.Split(hosts, ",")...)
		config.Port = c.GlobalInt("port")
		config.Timeout = c.GlobalDuration("timeout")
		return config, config.Validate()
	}
	if record := c.GlobalString("record"); record != "" {
		path, err := homedir.Expand(record)
		if err != nil {
			return fdfs.TrackerConfig{}, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fdfs.TrackerConfig{}, err
		}
		return fdfs.ParseConfigRecord(data)
	}
	path, err := homedir.Expand(c.GlobalString("conf"))
	if err != nil {
		return fdfs.TrackerConfig{}, err
	}
	return fdfs.LoadConfFile(path)
}

// getOptions builds the client options from the global flags.
func (b *fdfsCli) getOptions(c *cli.Context) (fdfs.Options, error) {
	options := fdfs.Options{SSL: c.GlobalBool("ssl"), Instance: "fdfscli"}
	for _, m := range c.GlobalStringSlice("map") {
		kv := strings.SplitN(m, "=", 2)
		if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
			return options, fmt.Errorf("bad --map %q, expected ip=host", m)
		}
		if options.IPMapping == nil {
			options.IPMapping = make(map[string]string)
		}
		options.IPMapping[kv[0]] = kv[1]
	}
	return options, nil
}

// getClient returns a client object that will be used to talk to the
// cluster. If there's already one for the same flags, reuse it.
func (b *fdfsCli) getClient(c *cli.Context) *fdfs.Client {
	config, err := b.getConfig(c)
	if err != nil {
		b.fail("No usable tracker configuration: %s", err)
		return nil
	}
	options, err := b.getOptions(c)
	if err != nil {
		b.fail("%s", err)
		return nil
	}
	key := fmt.Sprintf("%v|%v", config, options)
	if b.clt != nil && b.cltCacheKey == key {
		return b.clt
	}
	if b.clt != nil {
		b.clt.Close()
	}
	b.clt, err = fdfs.NewClient(config, options)
	if err != nil {
		b.fail("Couldn't create client: %s", err)
		return nil
	}
	b.cltCacheKey = key
	return b.clt
}

// getAsyncClient returns a client that doesn't pool connections.
func (b *fdfsCli) getAsyncClient(c *cli.Context) *fdfs.AsyncClient {
	config, err := b.getConfig(c)
	if err != nil {
		b.fail("No usable tracker configuration: %s", err)
		return nil
	}
	options, err := b.getOptions(c)
	if err != nil {
		b.fail("%s", err)
		return nil
	}
	a, err := fdfs.NewAsyncClient(config, options)
	if err != nil {
		b.fail("Couldn't create client: %s", err)
		return nil
	}
	return a
}

// getHistory opens the upload history. It returns nil if it's disabled or
// can't be opened; uploads work without it.
func (b *fdfsCli) getHistory(c *cli.Context) *history.DB {
	if b.hist != nil {
		return b.hist
	}
	path := c.GlobalString("history")
	if path == "" {
		return nil
	}
	path, err := homedir.Expand(path)
	if err != nil {
		log.Errorf("Bad history path: %s", err)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		log.Errorf("Couldn't create history dir: %s", err)
		return nil
	}
	if b.hist, err = history.Open(path); err != nil {
		log.Errorf("Couldn't open history: %s", err)
		return nil
	}
	return b.hist
}

// remember records an upload in the history.
func (b *fdfsCli) remember(c *cli.Context, op string, res *fdfs.Result) {
	h := b.getHistory(c)
	if h == nil {
		return
	}
	e := history.Entry{Op: op, FileID: res.FileID, StorageIP: res.StorageIP, LocalFile: res.LocalFile, Size: res.Size}
	if _, err := h.Record(e); err != nil {
		log.Errorf("Couldn't record upload: %s", err)
	}
}

// forget drops a deleted file from the history.
func (b *fdfsCli) forget(c *cli.Context, fileID string) {
	if h := b.getHistory(c); h != nil {
		if _, err := h.Remove(fileID); err != nil {
			log.Errorf("Couldn't update history: %s", err)
		}
	}
}

// print writes 'v' as JSON if --json is set, or with 'format' otherwise.
func (b *fdfsCli) print(c *cli.Context, v interface{}, format string, args ...interface{}) {
	if c.GlobalBool("json") {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			b.fail("Couldn't encode result: %s", err)
			return
		}
		fmt.Fprintln(b.out, string(data))
		return
	}
	fmt.Fprintf(b.out, format, args...)
}

func (b *fdfsCli) printResult(c *cli.Context, res *fdfs.Result) {
	b.print(c, res, "%s\n  file id:    %s\n  storage ip: %s\n  size:       %d\n",
		res.Status, res.FileID, res.StorageIP, res.Size)
}

// parseMeta turns repeated key=value flags into metadata.
func parseMeta(values []string) (fdfs.Metadata, error) {
	if len(values) == 0 {
		return nil, nil
	}
	meta := make(fdfs.Metadata)
	for _, v := range values {
		kv := strings.SplitN(v, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("bad metadata %q, expected key=value", v)
		}
		meta[kv[0]] = kv[1]
	}
	return meta, nil
}

// args checks the number of positional arguments.
func (b *fdfsCli) args(c *cli.Context, min, max int) bool {
	if n := c.NArg(); n < min || (max >= 0 && n > max) {
		b.fail("%s: wrong number of arguments, usage: %s %s", c.Command.Name, c.Command.Name, c.Command.ArgsUsage)
		return false
	}
	return true
}

// This function will be called before any subcommand gets started so some setup
// can be done here.
func (b *fdfsCli) beforeSubcommandRun(c *cli.Context) error {
	// See if users have some setup commands to run before any subcommand starts.
	commands := c.GlobalStringSlice("setup")
	if len(commands) != 0 && !b.inShell {
		log.Infof("Running setup commands...")
		for _, command := range commands {
			for _, one := range strings.Split(command, ";") {
				args, err := shlex.Split(one)
				if err != nil || len(args) == 0 {
					continue
				}
				log.Infof("Running command %q", one)
				if err := b.runCommand(c, args...); err != nil {
					log.Errorf("error: %v", err)
					return err
				}
			}
		}
		log.Infof("Setup is done!")
	}
	return nil
}

//-------------------
// Uploads
//-------------------

// cmdUpFile implements the "upfile" subcommand.
func (b *fdfsCli) cmdUpFile(c *cli.Context) {
	if !b.args(c, 1, 1) {
		return
	}
	meta, err := parseMeta(c.StringSlice("meta"))
	if err != nil {
		b.fail("%s", err)
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	res, err := client.UploadByFilename(c.Args().First(), meta)
	if err != nil {
		b.fail("Upload failed: %s", err)
		return
	}
	b.remember(c, "upfile", res)
	b.printResult(c, res)
}

// cmdUpBuffer implements the "upbuffer" subcommand.
func (b *fdfsCli) cmdUpBuffer(c *cli.Context) {
	if !b.args(c, 0, 0) {
		return
	}
	meta, err := parseMeta(c.StringSlice("meta"))
	if err != nil {
		b.fail("%s", err)
		return
	}
	buf, err := io.ReadAll(os.Stdin)
	if err != nil {
		b.fail("Couldn't read stdin: %s", err)
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	res, err := client.UploadByBuffer(buf, c.String("ext"), meta)
	if err != nil {
		b.fail("Upload failed: %s", err)
		return
	}
	b.remember(c, "upbuffer", res)
	b.printResult(c, res)
}

// cmdUpURL implements the "upurl" subcommand.
func (b *fdfsCli) cmdUpURL(c *cli.Context) {
	if !b.args(c, 0, 0) {
		return
	}
	buf, err := io.ReadAll(os.Stdin)
	if err != nil {
		b.fail("Couldn't read stdin: %s", err)
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	url, err := client.UploadAsURL(buf, c.String("ext"))
	if err != nil {
		b.fail("Upload failed: %s", err)
		return
	}
	b.print(c, map[string]string{"url": url}, "%s\n", url)
}

// cmdUpSlave implements the "upslave" subcommand.
func (b *fdfsCli) cmdUpSlave(c *cli.Context) {
	if !b.args(c, 3, 3) {
		return
	}
	meta, err := parseMeta(c.StringSlice("meta"))
	if err != nil {
		b.fail("%s", err)
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	res, err := client.UploadSlaveByFilename(c.Args().Get(0), c.Args().Get(1), c.Args().Get(2), meta)
	if err != nil {
		b.fail("Upload failed: %s", err)
		return
	}
	b.remember(c, "upslave", res)
	b.printResult(c, res)
}

// cmdUpAppend implements the "upappend" subcommand.
func (b *fdfsCli) cmdUpAppend(c *cli.Context) {
	if !b.args(c, 1, 1) {
		return
	}
	meta, err := parseMeta(c.StringSlice("meta"))
	if err != nil {
		b.fail("%s", err)
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	res, err := client.UploadAppenderByFilename(c.Args().First(), meta)
	if err != nil {
		b.fail("Upload failed: %s", err)
		return
	}
	b.remember(c, "upappend", res)
	b.printResult(c, res)
}

// cmdUpBatch implements the "upbatch" subcommand.
func (b *fdfsCli) cmdUpBatch(c *cli.Context) {
	if !b.args(c, 1, -1) {
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	parallel := c.Int("parallel")
	if parallel <= 0 {
		parallel = 1
	}

	// The whole file is charged before it's sent, so allow a burst of one
	// second's worth.
	var tb *tokenbucket.TokenBucket
	if rate := c.Int("rate"); rate > 0 {
		tb = tokenbucket.New(float32(rate)*1024, float32(rate)*1024)
	}

	ctx := context.Background()
	if timeout := c.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	files := c.Args()
	results := make([]*fdfs.Result, len(files))
	sem := make(chan struct{}, parallel)
	var g errgroup.Group
	var lock sync.Mutex
	failed := 0
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			var err error
			if tb != nil {
				if fi, serr := os.Stat(f); serr == nil {
					err = tb.Wait(ctx, float32(fi.Size()))
				}
			} else {
				err = ctx.Err()
			}
			if err != nil {
				log.Errorf("Upload of %s not started: %s", f, err)
				lock.Lock()
				failed++
				lock.Unlock()
				return nil
			}
			res, err := client.UploadByFilename(f, nil)
			if err != nil {
				log.Errorf("Upload of %s failed: %s", f, err)
				lock.Lock()
				failed++
				lock.Unlock()
				return nil
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()

	var done []*fdfs.Result
	for _, res := range results {
		if res != nil {
			b.remember(c, "upbatch", res)
			done = append(done, res)
		}
	}
	if c.GlobalBool("json") {
		b.print(c, done, "")
	} else {
		for _, res := range done {
			fmt.Fprintf(b.out, "%s\t%s\n", res.LocalFile, res.FileID)
		}
	}
	if failed > 0 {
		b.fail("%d of %d uploads failed", failed, len(files))
	}
}

// cmdAsyncUpload implements the "aupload" subcommand.
func (b *fdfsCli) cmdAsyncUpload(c *cli.Context) {
	if !b.args(c, 1, 1) {
		return
	}
	path := c.Args().First()
	buf, err := os.ReadFile(path)
	if err != nil {
		b.fail("Couldn't read %s: %s", path, err)
		return
	}
	a := b.getAsyncClient(c)
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.GlobalDuration("timeout"))
	defer cancel()
	url, err := a.Upload(ctx, buf, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		b.fail("Upload failed: %s", err)
		return
	}
	b.print(c, map[string]string{"url": url}, "%s\n", url)
}

//-------------------
// Appender files
//-------------------

// cmdAppend implements the "append" subcommand.
func (b *fdfsCli) cmdAppend(c *cli.Context) {
	if !b.args(c, 2, 2) {
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	res, err := client.AppendByFilename(c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		b.fail("Append failed: %s", err)
		return
	}
	b.printResult(c, res)
}

// cmdModify implements the "modify" subcommand.
func (b *fdfsCli) cmdModify(c *cli.Context) {
	if !b.args(c, 2, 2) {
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	res, err := client.ModifyByFilename(c.Args().Get(0), int64(c.Int("offset")), c.Args().Get(1))
	if err != nil {
		b.fail("Modify failed: %s", err)
		return
	}
	b.printResult(c, res)
}

// cmdTruncate implements the "truncate" subcommand.
func (b *fdfsCli) cmdTruncate(c *cli.Context) {
	if !b.args(c, 1, 1) {
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	res, err := client.TruncateFile(int64(c.Int("size")), c.Args().First())
	if err != nil {
		b.fail("Truncate failed: %s", err)
		return
	}
	b.printResult(c, res)
}

//-------------------
// Downloads and deletes
//-------------------

// cmdDownFile implements the "downfile" subcommand.
func (b *fdfsCli) cmdDownFile(c *cli.Context) {
	if !b.args(c, 2, 2) {
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	res, err := client.DownloadToFile(c.Args().Get(1), c.Args().Get(0), int64(c.Int("offset")), int64(c.Int("length")))
	if err != nil {
		b.fail("Download failed: %s", err)
		return
	}
	b.print(c, res, "Downloaded %d bytes of %s from %s to %s\n", res.Size, res.FileID, res.StorageIP, res.LocalFile)
}

// cmdDownBuffer implements the "downbuffer" subcommand.
func (b *fdfsCli) cmdDownBuffer(c *cli.Context) {
	if !b.args(c, 1, 1) {
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	res, err := client.DownloadToBuffer(c.Args().First(), int64(c.Int("offset")), int64(c.Int("length")))
	if err != nil {
		b.fail("Download failed: %s", err)
		return
	}
	if c.GlobalBool("json") {
		b.print(c, res, "")
		return
	}
	b.out.Write(res.Content)
}

// cmdDelete implements the "delete" subcommand.
func (b *fdfsCli) cmdDelete(c *cli.Context) {
	if !b.args(c, 1, 1) {
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	res, err := client.DeleteFile(c.Args().First())
	if err != nil {
		b.fail("Delete failed: %s", err)
		return
	}
	b.forget(c, res.FileID)
	b.printResult(c, res)
}

// cmdAsyncDelete implements the "adelete" subcommand.
func (b *fdfsCli) cmdAsyncDelete(c *cli.Context) {
	if !b.args(c, 1, 1) {
		return
	}
	a := b.getAsyncClient(c)
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.GlobalDuration("timeout"))
	defer cancel()
	res, err := a.Delete(ctx, c.Args().First())
	if err != nil {
		b.fail("Delete failed: %s", err)
		return
	}
	b.forget(c, res.FileID)
	b.printResult(c, res)
}

//-------------------
// Metadata and info
//-------------------

// cmdGetMeta implements the "getmeta" subcommand.
func (b *fdfsCli) cmdGetMeta(c *cli.Context) {
	if !b.args(c, 1, 1) {
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	meta, err := client.GetMetadata(c.Args().First())
	if err != nil {
		b.fail("Couldn't get metadata: %s", err)
		return
	}
	if c.GlobalBool("json") {
		b.print(c, meta, "")
		return
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b.out, "%s = %s\n", k, meta[k])
	}
}

// cmdSetMeta implements the "setmeta" subcommand.
func (b *fdfsCli) cmdSetMeta(c *cli.Context) {
	if !b.args(c, 1, 1) {
		return
	}
	meta, err := parseMeta(c.StringSlice("meta"))
	if err != nil {
		b.fail("%s", err)
		return
	}
	flag := fdfs.MetadataOverwrite
	if c.Bool("merge") {
		flag = fdfs.MetadataMerge
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	res, err := client.SetMetadata(c.Args().First(), meta, flag)
	if err != nil {
		b.fail("Couldn't set metadata: %s", err)
		return
	}
	b.printResult(c, res)
}

// cmdInfo implements the "info" subcommand.
func (b *fdfsCli) cmdInfo(c *cli.Context) {
	if !b.args(c, 1, 1) {
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	fi, err := client.QueryFileInfo(c.Args().First())
	if err != nil {
		b.fail("Couldn't get file info: %s", err)
		return
	}
	b.print(c, fi, "size:       %d\ncreated:    %s\ncrc32:      %08x\nsource ip:  %s\n",
		fi.Size, fi.CreatedAt.Format(time.RFC3339), fi.CRC32, fi.SourceIP)
}

//-------------------
// Cluster listing
//-------------------

func (b *fdfsCli) printGroup(g fdfs.GroupStat) {
	fmt.Fprintf(b.out, "group %s: %d servers (%d active), %d/%d MB free, port %d\n",
		g.Name, g.ServerCount, g.ActiveCount, g.FreeMB, g.TotalMB, g.StoragePort)
}

// cmdListGroup implements the "listgroup" subcommand.
func (b *fdfsCli) cmdListGroup(c *cli.Context) {
	if !b.args(c, 1, 1) {
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	g, err := client.ListOneGroup(c.Args().First())
	if err != nil {
		b.fail("Couldn't list group: %s", err)
		return
	}
	if c.GlobalBool("json") {
		b.print(c, g, "")
		return
	}
	b.printGroup(g)
}

// cmdListAll implements the "listall" subcommand.
func (b *fdfsCli) cmdListAll(c *cli.Context) {
	if !b.args(c, 0, 0) {
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	gs, err := client.ListAllGroups()
	if err != nil {
		b.fail("Couldn't list groups: %s", err)
		return
	}
	if c.GlobalBool("json") {
		b.print(c, gs, "")
		return
	}
	for _, g := range gs {
		b.printGroup(g)
	}
}

// cmdListServers implements the "listsrv" subcommand.
func (b *fdfsCli) cmdListServers(c *cli.Context) {
	if !b.args(c, 1, 2) {
		return
	}
	client := b.getClient(c)
	if client == nil {
		return
	}
	ss, err := client.ListServers(c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		b.fail("Couldn't list servers: %s", err)
		return
	}
	if c.GlobalBool("json") {
		b.print(c, ss, "")
		return
	}
	for _, s := range ss {
		fmt.Fprintf(b.out, "%s (%s) status %d version %s: %d/%d MB free, up since %s\n",
			s.IPAddr, s.ID, s.Status, s.Version, s.FreeMB, s.TotalMB, s.UpTime.Format(time.RFC3339))
	}
}

// cmdHistory implements the "history" subcommand.
func (b *fdfsCli) cmdHistory(c *cli.Context) {
	if !b.args(c, 0, 0) {
		return
	}
	h := b.getHistory(c)
	if h == nil {
		b.fail("No upload history")
		return
	}
	entries, err := h.List(c.Int("n"))
	if err != nil {
		b.fail("Couldn't read history: %s", err)
		return
	}
	if c.GlobalBool("json") {
		b.print(c, entries, "")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(b.out, "%s  %-9s %s  %d bytes  %s\n",
			e.Time.Format("2006-01-02 15:04:05"), e.Op, e.FileID, e.Size, e.LocalFile)
	}
}

//-------------------
// Shell
//-------------------

// cmdShell implements "shell" subcommand.
func (b *fdfsCli) cmdShell(c *cli.Context) {
	b.inShell = true
	defer func() {
		// The shell itself succeeded whatever its commands did.
		b.inShell = false
		b.failed = false
	}()

	// Make cli not exit on errors.
	cli.OsExiter = func(int) {}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	// Add commands auto completion.
	line.SetCompleter(func(prefix string) (c []string) {
		for _, cmd := range b.app.Commands {
			if strings.HasPrefix(cmd.Name, prefix) {
				c = append(c, cmd.Name)
			}
		}
		return
	})

	defer line.Close()

	for {
		input, err := line.Prompt("(fdfs) ")
		if err != nil {
			if err != io.EOF {
				log.Errorf("error: %v", err)
			}
			return
		}

		// We use 'shlex' because we want split input line in to tokens using
		// shell-style rules for quoting and commenting.
		args, err := shlex.Split(input)
		if err != nil {
			log.Errorf("error:%v", err)
			continue
		}

		// Skip empty line.
		if len(args) == 0 {
			continue
		}

		if args[0] == "exit" || args[0] == "quit" {
			return
		}

		b.failed = false
		if b.runCommand(c, args...) == nil && !b.failed {
			// Adds succeeded command to command history.
			line.AppendHistory(input)
		}
	}
}

// runCommand runs a command after the cli gets started already (either from
// the command interpreter or setup flags). The global flags are carried over.
func (b *fdfsCli) runCommand(c *cli.Context, args ...string) error {
	cmdArgs := []string{"fdfscli"}
	for _, name := range []string{"tracker", "record", "conf", "history"} {
		if v := c.GlobalString(name); v != "" {
			cmdArgs = append(cmdArgs, "--"+name, v)
		}
	}
	cmdArgs = append(cmdArgs, "--port", fmt.Sprint(c.GlobalInt("port")), "--timeout", c.GlobalDuration("timeout").String())
	for _, m := range c.GlobalStringSlice("map") {
		cmdArgs = append(cmdArgs, "--map", m)
	}
	for _, name := range []string{"ssl", "json"} {
		if c.GlobalBool(name) {
			cmdArgs = append(cmdArgs, "--"+name)
		}
	}
	cmdArgs = append(cmdArgs, args...)
	return b.run(cmdArgs)
}
