// Command schemagen writes the JSON schema of a rulesync file format.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/macropower/rulesync/pkg/config"
	"github.com/macropower/rulesync/pkg/rule"
	"github.com/macropower/rulesync/pkg/yaml"
)

var (
	kind    = flag.String("kind", "config", "Schema to generate, one of: [config rule]")
	outFile = flag.String("o", "schema.json", "Output file for the generated schema")
)

func main() {
	flag.Parse()

	var v any

	switch *kind {
	case "config":
		v = config.NewConfig()
	case "rule":
		v = &rule.Spec{}
	default:
		log.Fatalf("unknown schema kind %q", *kind)
	}

	jsData, err := yaml.ReflectSchema(v)
	if err != nil {
		log.Fatalf("generate JSON schema: %v", err)
	}

	err = os.WriteFile(*outFile, jsData, 0o600)
	if err != nil {
		log.Fatalf("write schema file: %v", err)
	}
}
