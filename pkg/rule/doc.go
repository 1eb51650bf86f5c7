// Package rule defines rule definitions as they are stored in the catalog,
// and the file format they are authored in.
//
// A rule file holds one YAML document:
//
//	name: cpu-high
//	description: Scale up when CPU is saturated.
//	priority: 1
//	condition: facts.cpu > 0.9
//	actions:
//	  - "'scale-up'"
//
// The catalog key of a rule is always derived from its filename, see
// [CanonicalName].
package rule
