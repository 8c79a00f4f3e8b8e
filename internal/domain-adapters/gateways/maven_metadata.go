package gateways

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"

	version "github.com/hashicorp/go-version"
)

// mavenMetadata is the subset of maven-metadata.xml used for version listing
type mavenMetadata struct {
	XMLName    xml.Name `xml:"metadata"`
	GroupID    string   `xml:"groupId"`
	ArtifactID string   `xml:"artifactId"`
	Versioning struct {
		Latest   string   `xml:"latest"`
		Release  string   `xml:"release"`
		Versions []string `xml:"versions>version"`
	} `xml:"versioning"`
}

// pomProject is the subset of a pom descriptor needed to derive artifacts
type pomProject struct {
	XMLName   xml.Name `xml:"project"`
	Packaging string   `xml:"packaging"`
}

func parseMavenMetadata(r io.Reader) (*mavenMetadata, error) {
	var md mavenMetadata
	if err := xml.NewDecoder(r).Decode(&md); err != nil {
		return nil, fmt.Errorf("failed to parse maven-metadata.xml: %w", err)
	}
	return &md, nil
}

// readPackaging returns the packaging declared by a pom file, "jar" when absent
func readPackaging(pomPath string) (string, error) {
	//nolint:gosec // G304: pomPath comes from the artifact cache
	f, err := os.Open(pomPath)
	if err != nil {
		return "", fmt.Errorf("failed to open descriptor: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	var project pomProject
	if err := xml.NewDecoder(f).Decode(&project); err != nil {
		return "", fmt.Errorf("failed to parse descriptor %s: %w", pomPath, err)
	}
	if project.Packaging == "" {
		return "jar", nil
	}
	return project.Packaging, nil
}

// sortVersions orders versions ascending. Versions that do not parse are
// placed after all parseable ones, in lexical order.
func sortVersions(versions []string) []string {
	type entry struct {
		raw    string
		parsed *version.Version
	}

	entries := make([]entry, 0, len(versions))
	seen := make(map[string]bool, len(versions))
	for _, v := range versions {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		parsed, err := version.NewVersion(v)
		if err != nil {
			parsed = nil
		}
		entries = append(entries, entry{raw: v, parsed: parsed})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.parsed != nil && b.parsed != nil:
			if a.parsed.Equal(b.parsed) {
				return a.raw < b.raw
			}
			return a.parsed.LessThan(b.parsed)
		case a.parsed != nil:
			return true
		case b.parsed != nil:
			return false
		default:
			return a.raw < b.raw
		}
	})

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.raw
	}
	return out
}
