package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/geofffranks/simpleyaml"
	"github.com/starkandwayne/goutils/ansi"

	"github.com/wayneeseguin/skein/log"
)

func cmdJSONEval(options jsonOpts) ([]string, error) {
	stdinInfo, err := os.Stdin.Stat()
	if err != nil {
		return nil, ansi.Errorf("@R{Error statting STDIN} - Bailing out: %s\n", err.Error())
	}
	if stdinInfo.Mode()&os.ModeCharDevice == 0 {
		options.Files = append(options.Files, "-")
	}
	return jsonifyFiles(options.Files, options.Strict)
}

func jsonifyData(data []byte, strict bool) (string, error) {
	y, err := simpleyaml.NewYaml(data)
	if err != nil {
		return "", err
	}

	doc, err := y.Map()
	if err != nil {
		return "", ansi.Errorf("@R{Root of YAML document is not a hash/map}: %s\n", err.Error())
	}

	converted, err := deinterface(doc, strict)
	if err != nil {
		return "", err
	}

	b, err := json.Marshal(converted)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func jsonifyFiles(paths []string, strict bool) ([]string, error) {
	l := []string{}
	for _, path := range paths {
		data, err := readFile(path)
		if err != nil {
			return nil, err
		}

		docs := bytes.Split(data, []byte("\n---\n"))
		if len(docs[0]) == 0 {
			docs = docs[1:]
		}
		for i, doc := range docs {
			jsonData, err := jsonifyData(doc, strict)
			if err != nil {
				return nil, ansi.Errorf("%s[%d]: %s", path, i, err)
			}
			l = append(l, jsonData)
		}
	}
	return l, nil
}

func deinterface(o interface{}, strict bool) (interface{}, error) {
	switch o.(type) {
	case map[interface{}]interface{}:
		return deinterfaceMap(o.(map[interface{}]interface{}), strict)
	case []interface{}:
		return deinterfaceList(o.([]interface{}), strict)
	default:
		return o, nil
	}
}

func deinterfaceMap(o map[interface{}]interface{}, strict bool) (map[string]interface{}, error) {
	m := map[string]interface{}{}
	for k, v := range o {
		switch k.(type) {
		case string:
			dv, err := deinterface(v, strict)
			if err != nil {
				return nil, err
			}
			m[k.(string)] = dv
		default:
			if strict {
				return nil, ansi.Errorf("@R{Non-string keys are not supported in strict mode:} @m{%v}", k)
			}
			log.DEBUG("converting non-string key %v to string", k)
			dv, err := deinterface(v, strict)
			if err != nil {
				return nil, err
			}
			m[fmt.Sprintf("%v", k)] = dv
		}
	}
	return m, nil
}

func deinterfaceList(o []interface{}, strict bool) ([]interface{}, error) {
	l := make([]interface{}, 0, len(o))
	for _, v := range o {
		dv, err := deinterface(v, strict)
		if err != nil {
			return nil, err
		}
		l = append(l, dv)
	}
	return l, nil
}
