// Command famfs-pcq creates and exercises a producer/consumer queue backed
// by two famfs files, grounded on _examples/original_source/src/pcq.c's CLI
// surface (create/producer/consumer/info/setperm) minus the thread
// scaffolding a single Go process doesn't need.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/pcq"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/session"
)

var (
	errQueueNameRequired = errors.New("famfs-pcq: must specify a queue path")
	errNothingToDo       = errors.New("famfs-pcq: specify one of --create, --producer, --consumer, --info, --setperm")
	errBadPerm           = errors.New("famfs-pcq: --setperm value must be one of p|c|b|n")
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	var helpBuf bytes.Buffer

	flagSet := flag.NewFlagSet("famfs-pcq", flag.ContinueOnError)
	flagSet.SetOutput(&helpBuf)
	flagSet.Usage = func() {
		w := flagSet.Output()
		fmt.Fprintf(w, "Usage: famfs-pcq [flags] <queuename>\n\n")
		fmt.Fprintf(w, "Create or drive a producer/consumer queue.\n\n")
		fmt.Fprintf(w, "Flags:\n")
		flagSet.PrintDefaults()
	}

	create := flagSet.BoolP("create", "C", false, "Create a producer/consumer queue")
	bucketSize := flagSet.Uint64P("bsize", "b", 64, "Bucket size in bytes (power of two)")
	nbuckets := flagSet.Uint64P("nbuckets", "n", 1024, "Number of buckets in the queue")
	producer := flagSet.BoolP("producer", "p", false, "Run the producer")
	consumer := flagSet.BoolP("consumer", "c", false, "Run the consumer")
	info := flagSet.BoolP("info", "i", false, "Dump the state of a queue")
	nmessages := flagSet.Uint64P("nmessages", "N", 0, "Number of messages to send/receive")
	setPerm := flagSet.StringP("setperm", "P", "", "Set queue permission: p|c|b|n")
	mountPoint := flagSet.String("mountpoint", "", "Mount point to open a session on, for --create")

	if hasHelpFlag(args) {
		flagSet.Usage()
		fmt.Fprint(stdout, helpBuf.String())
		return 0
	}

	if err := flagSet.Parse(args); err != nil {
		fmt.Fprintf(stderr, "%s\n\n%s", err, helpBuf.String())
		return 1
	}

	if flagSet.NArg() < 1 {
		fmt.Fprintln(stderr, errQueueNameRequired)
		return 1
	}
	path := flagSet.Arg(0)

	switch {
	case *create:
		return runCreate(stdout, stderr, *mountPoint, path, *nbuckets, *bucketSize)
	case *setPerm != "":
		return runSetPerm(stdout, stderr, path, *setPerm)
	case *info:
		return runInfo(stdout, stderr, path)
	case *producer || *consumer:
		return runProducerConsumer(stdout, stderr, path, *producer, *consumer, *nmessages)
	default:
		fmt.Fprintln(stderr, errNothingToDo)
		return 1
	}
}

func runCreate(stdout, stderr *os.File, mountPoint, path string, nbuckets, bucketSize uint64) int {
	sess, err := session.Open(mountPoint, session.Options{})
	if err != nil {
		fmt.Fprintln(stderr, "famfs-pcq: opening session:", err)
		return 1
	}
	defer sess.Close(false)

	if err := pcq.Create(sess, path, nbuckets, bucketSize, uint32(os.Getuid()), uint32(os.Getgid())); err != nil {
		fmt.Fprintln(stderr, "famfs-pcq: create failed:", err)
		return 1
	}

	fmt.Fprintf(stdout, "created queue %s: %d buckets x %d bytes\n", path, nbuckets, bucketSize)
	return 0
}

func runSetPerm(stdout, stderr *os.File, path, val string) int {
	perm, err := parsePerm(val)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err := pcq.SetPerm(path, perm); err != nil {
		fmt.Fprintln(stderr, "famfs-pcq: setperm failed:", err)
		return 1
	}
	fmt.Fprintf(stdout, "set permission %s on %s\n", val, path)
	return 0
}

func runInfo(stdout, stderr *os.File, path string) int {
	q, err := pcq.Open(path, pcq.RoleReadOnly)
	if err != nil {
		fmt.Fprintln(stderr, "famfs-pcq: opening queue:", err)
		return 1
	}
	defer q.Close()

	stats := q.Stats()
	fmt.Fprintf(stdout, "depth=%d producer_index=%d consumer_index=%d sent=%d received=%d errors=%d full=%d empty=%d retries=%d\n",
		stats.Depth, stats.ProducerIndex, stats.ConsumerIndex, stats.Sent, stats.Received, stats.Errors, stats.Full, stats.Empty, stats.Retries)
	return 0
}

func runProducerConsumer(stdout, stderr *os.File, path string, wantProducer, wantConsumer bool, nmessages uint64) int {
	ctx := context.Background()

	if wantProducer {
		q, err := pcq.Open(path, pcq.RoleProducer)
		if err != nil {
			fmt.Fprintln(stderr, "famfs-pcq: opening producer:", err)
			return 1
		}
		defer q.Close()

		for i := uint64(0); nmessages == 0 || i < nmessages; i++ {
			payload := []byte(fmt.Sprintf("msg-%d", i))
			if _, err := q.Put(ctx, payload, true); err != nil {
				fmt.Fprintln(stderr, "famfs-pcq: put failed:", err)
				return 1
			}
		}
	}

	if wantConsumer {
		q, err := pcq.Open(path, pcq.RoleConsumer)
		if err != nil {
			fmt.Fprintln(stderr, "famfs-pcq: opening consumer:", err)
			return 1
		}
		defer q.Close()

		for i := uint64(0); nmessages == 0 || i < nmessages; i++ {
			if _, _, err := q.Get(ctx, true); err != nil {
				fmt.Fprintln(stderr, "famfs-pcq: get failed:", err)
				return 1
			}
		}
	}

	fmt.Fprintln(stdout, "done")
	return 0
}

func parsePerm(val string) (pcq.Perm, error) {
	switch val {
	case "p":
		return pcq.PermProducer, nil
	case "c":
		return pcq.PermConsumer, nil
	case "b":
		return pcq.PermBoth, nil
	case "n":
		return pcq.PermNone, nil
	default:
		return pcq.PermNone, fmt.Errorf("%w: %q", errBadPerm, val)
	}
}

func hasHelpFlag(args []string) bool {
	for _, a := range args {
		if a == "-h" || a == "--help" || a == "-?" {
			return true
		}
	}
	return false
}
