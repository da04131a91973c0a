package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cppforlife/go-patch/patch"
	"github.com/gonvenience/ytbx"
	"github.com/homeport/dyff/pkg/dyff"
	"github.com/mattn/go-isatty"
	"github.com/starkandwayne/goutils/ansi"

	"github.com/geofffranks/simpleyaml"
	"github.com/geofffranks/yaml"
	"github.com/voxelbrain/goptions"

	"github.com/wayneeseguin/skein/internal/config"
	"github.com/wayneeseguin/skein/log"
	"github.com/wayneeseguin/skein/pkg/skein/document"
	"github.com/wayneeseguin/skein/pkg/skein/runtime"
)

// Version holds the current version of skein
var Version = "(development)"

var printfStdOut = func(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
}

var getopts = func(o interface{}) {
	err := goptions.Parse(o)
	if err != nil {
		usage()
	}
}

var exit = func(code int) {
	os.Exit(code)
}

var usage = func() {
	goptions.PrintHelp()
	exit(1)
}

func envFlag(varname string) bool {
	val := os.Getenv(varname)
	return val != "" && strings.ToLower(val) != "false" && val != "0"
}

type loadOpts struct {
	OpsFile string             `goptions:"--ops-file, description='Apply a go-patch ops file to the document before loading'"`
	Help    bool               `goptions:"--help, -h"`
	Files   goptions.Remainder `goptions:"description='Documents to load. To read STDIN, specify a filename of \\'-\\'.'"`
}

type queryOpts struct {
	At      string             `goptions:"--at, description='Attribute path the query registers at (e.g. jobs.port)'"`
	Where   string             `goptions:"--where, description='Exact value a node must carry to match'"`
	Min     string             `goptions:"--min, description='Lower bound of a range query'"`
	Max     string             `goptions:"--max, description='Upper bound of a range query'"`
	OpsFile string             `goptions:"--ops-file, description='Apply a go-patch ops file to the document before loading'"`
	Help    bool               `goptions:"--help, -h"`
	Files   goptions.Remainder `goptions:"description='Documents to query'"`
}

type snapshotOpts struct {
	At       string             `goptions:"--at, description='Attribute path of the sub-tree root'"`
	Compress bool               `goptions:"--compress, description='Print the compressed sub-tree identity as well'"`
	Help     bool               `goptions:"--help, -h"`
	Files    goptions.Remainder `goptions:"description='Documents to snapshot'"`
}

type jsonOpts struct {
	Strict bool               `goptions:"--strict, description='Refuse to convert non-string keys to strings'"`
	Help   bool               `goptions:"--help, -h"`
	Files  goptions.Remainder `goptions:"description='Files to convert to JSON'"`
}

func main() {
	var options struct {
		Debug   bool   `goptions:"-D, --debug, description='Enable debugging'"`
		Trace   bool   `goptions:"-T, --trace, description='Enable trace mode debugging (very verbose)'"`
		Version bool   `goptions:"-v, --version, description='Display version information'"`
		Color   string `goptions:"--color, description='Control color output (on/off/auto, default: auto)'"`
		Profile string `goptions:"--profile, description='Configuration profile (default/testing/throughput)'"`
		Action  goptions.Verbs
		Load     loadOpts     `goptions:"load"`
		Query    queryOpts    `goptions:"query"`
		Snapshot snapshotOpts `goptions:"snapshot"`
		JSON     jsonOpts     `goptions:"json"`
		Diff     struct {
			Files goptions.Remainder `goptions:"description='Show the semantic differences between two snapshot files'"`
		} `goptions:"diff"`
	}
	getopts(&options)

	if envFlag("DEBUG") || options.Debug {
		log.DebugOn = true
	}

	if envFlag("TRACE") || options.Trace {
		log.TraceOn = true
		log.DebugOn = true
	}

	if options.Load.Help || options.Query.Help || options.Snapshot.Help || options.JSON.Help {
		usage()
		return
	}

	if options.Version {
		printfStdOut("%s - Version %s\n", os.Args[0], Version)
		exit(0)
		return
	}

	shouldEnableColor := false
	switch options.Color {
	case "on":
		shouldEnableColor = true
	case "off":
		shouldEnableColor = false
	case "auto", "":
		shouldEnableColor = isatty.IsTerminal(os.Stderr.Fd())
	default:
		log.PrintfStdErr("Invalid --color option: %s. Must be 'on', 'off', or 'auto'.\n", options.Color)
		exit(1)
		return
	}
	ansi.Color(shouldEnableColor)

	cfg := config.DefaultConfig()
	if options.Profile != "" {
		var err error
		cfg, err = config.LoadProfile(options.Profile)
		if err != nil {
			log.PrintfStdErr("%s\n", err)
			exit(1)
			return
		}
	}
	cfg.ApplyEnv()
	config.SetCurrent(cfg)

	switch options.Action {
	case "load":
		stats, err := cmdLoad(options.Load)
		if err != nil {
			log.PrintfStdErr("%s\n", err.Error())
			exit(2)
			return
		}
		printfStdOut("%s", stats)

	case "query":
		results, err := cmdQuery(options.Query)
		if err != nil {
			log.PrintfStdErr("%s\n", err.Error())
			exit(2)
			return
		}
		out, err := yaml.Marshal(results)
		if err != nil {
			log.PrintfStdErr("Unable to convert query results to YAML: %s\n", err.Error())
			exit(2)
			return
		}
		printfStdOut("%s\n", string(out))

	case "snapshot":
		out, err := cmdSnapshot(options.Snapshot)
		if err != nil {
			log.PrintfStdErr("%s\n", err.Error())
			exit(2)
			return
		}
		printfStdOut("%s\n", out)

	case "json":
		jsons, err := cmdJSONEval(options.JSON)
		if err != nil {
			log.PrintfStdErr("%s\n", err)
			exit(2)
			return
		}
		for _, output := range jsons {
			printfStdOut("%s\n", output)
		}

	case "diff":
		if options.Color == "auto" || options.Color == "" {
			ansi.Color(isatty.IsTerminal(os.Stdout.Fd()))
		}
		if len(options.Diff.Files) != 2 {
			usage()
			return
		}
		output, differences, err := diffFiles(options.Diff.Files)
		if err != nil {
			log.PrintfStdErr("%s\n", err)
			exit(2)
			return
		}
		printfStdOut("%s\n", output)
		if differences {
			exit(1)
		}

	default:
		usage()
		return
	}
	exit(0)
}

func readFile(path string) ([]byte, error) {
	if path == "-" {
		stat, err := os.Stdin.Stat()
		if err != nil {
			return nil, ansi.Errorf("@R{Error statting STDIN} - Bailing out: %s\n", err.Error())
		}
		if stat.Mode()&os.ModeCharDevice != 0 {
			return nil, ansi.Errorf("@R{STDIN is a terminal; nothing to read}")
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, ansi.Errorf("@R{Error reading STDIN}: %s\n", err.Error())
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ansi.Errorf("@R{Error reading file} @m{%s}: %s\n", path, err.Error())
	}
	return data, nil
}

func parseYAML(data []byte) (map[interface{}]interface{}, error) {
	y, err := simpleyaml.NewYaml(data)
	if err != nil {
		return nil, err
	}

	if emptyY, _ := simpleyaml.NewYaml([]byte{}); *y == *emptyY {
		log.DEBUG("YAML doc is empty, creating empty hash/map")
		return make(map[interface{}]interface{}), nil
	}

	doc, err := y.Map()
	if err != nil {
		return nil, ansi.Errorf("@R{Root of YAML document is not a hash/map}: %s\n", err.Error())
	}
	return doc, nil
}

func parseGoPatch(data []byte) (patch.Ops, error) {
	opdefs := []patch.OpDefinition{}
	err := yaml.Unmarshal(data, &opdefs)
	if err != nil {
		return nil, ansi.Errorf("@R{Unable to parse ops file}: %s\n", err)
	}
	ops, err := patch.NewOpsFromDefinitions(opdefs)
	if err != nil {
		return nil, ansi.Errorf("@R{Unable to parse go-patch definitions}: %s\n", err)
	}
	return ops, nil
}

// loadDocuments parses the given files, optionally applies a go-patch
// ops file, and loads every document into a fresh runtime's indexer.
// The raw document shapes are returned alongside for cursor and glob
// expansion against the original data.
func loadDocuments(files []string, opsFile string) (*runtime.Runtime, *document.Loader, []interface{}, error) {
	r := runtime.New(runtime.WithConfig(config.Current()))
	ix := r.NewIndexer()
	loader := document.NewLoader(ix)

	var ops patch.Ops
	if opsFile != "" {
		data, err := readFile(opsFile)
		if err != nil {
			return nil, nil, nil, err
		}
		ops, err = parseGoPatch(data)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	if len(files) == 0 {
		files = []string{"-"}
	}
	var docs []interface{}
	for _, file := range files {
		log.DEBUG("Processing file '%s'", file)
		data, err := readFile(file)
		if err != nil {
			return nil, nil, nil, err
		}
		doc, err := parseYAML(data)
		if err != nil {
			return nil, nil, nil, ansi.Errorf("@m{%s}: %s", file, err)
		}

		var root interface{} = doc
		if ops != nil {
			patched, err := ops.Apply(yamlToPatchable(doc))
			if err != nil {
				return nil, nil, nil, ansi.Errorf("@m{%s}: @R{go-patch failed}: %s", file, err)
			}
			root = patched
		}

		loader.Load(root)
		docs = append(docs, root)
	}
	ix.Flush()
	return r, loader, docs, nil
}

// yamlToPatchable converts the simpleyaml map shape into the string-keyed
// shape go-patch operates on.
func yamlToPatchable(o interface{}) interface{} {
	switch v := o.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[fmt.Sprintf("%v", k)] = yamlToPatchable(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = yamlToPatchable(val)
		}
		return out
	}
	return o
}

func diffFiles(paths []string) (string, bool, error) {
	if len(paths) != 2 {
		return "", false, ansi.Errorf("incorrect number of files given to diffFiles(); please file a bug report")
	}

	from, to, err := ytbx.LoadFiles(paths[0], paths[1])
	if err != nil {
		return "", false, err
	}

	report, err := dyff.CompareInputFiles(from, to)
	if err != nil {
		return "", false, err
	}

	reportWriter := &dyff.HumanReport{
		Report:            report,
		DoNotInspectCerts: false,
		NoTableStyle:      false,
		OmitHeader:        true,
	}

	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	reportWriter.WriteReport(out)
	out.Flush()

	return buf.String(), len(report.Diffs) > 0, nil
}
