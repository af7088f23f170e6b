package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repolens/internal/scan"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func scanRepo(t *testing.T, root string) *scan.RepoStructure {
	t.Helper()
	s, err := scan.Scan(root, scan.Options{MaxFileSize: 1 << 20})
	require.NoError(t, err)
	return s
}

func edgeSet(g *Graph) map[[2]string]Edge {
	out := map[[2]string]Edge{}
	for _, e := range g.Edges {
		out[[2]string{e.Source, e.Target}] = e
	}
	return out
}

func nodeByPath(g *Graph, p string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].Path == p {
			return &g.Nodes[i]
		}
	}
	return nil
}

func TestBuild_PythonImportScenario(t *testing.T) {
	root := t.TempDir()
	write(t, root, "main.py", `
import routes
import config
import db
`)
	write(t, root, "routes.py", "import db\nimport models\n")
	write(t, root, "models.py", "import db\n")
	write(t, root, "services.py", "import models\nimport db\n")
	write(t, root, "config.py", "x = 1\n")
	write(t, root, "db.py", "y = 2\n")

	g := Build(scanRepo(t, root))
	edges := edgeSet(g)

	for _, want := range [][2]string{
		{"main.py", "routes.py"},
		{"main.py", "config.py"},
		{"main.py", "db.py"},
		{"routes.py", "db.py"},
		{"routes.py", "models.py"},
		{"models.py", "db.py"},
		{"services.py", "models.py"},
		{"services.py", "db.py"},
	} {
		_, ok := edges[want]
		assert.True(t, ok, "missing edge %v", want)
	}

	main := nodeByPath(g, "main.py")
	require.NotNil(t, main)
	assert.GreaterOrEqual(t, main.ImportsCount, 3)

	config := nodeByPath(g, "config.py")
	require.NotNil(t, config)
	assert.GreaterOrEqual(t, config.ImportedByCount, 1)
}

func TestBuild_NoSelfEdgesAndDedup(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.py", `
import b
from b import helper
from b import other
`)
	write(t, root, "b.py", "import b\nhelper = 1\nother = 2\n")

	g := Build(scanRepo(t, root))
	edges := edgeSet(g)

	require.Len(t, g.Edges, 1)
	e, ok := edges[[2]string{"a.py", "b.py"}]
	require.True(t, ok)
	assert.Equal(t, 3, e.Count, "duplicate imports collapse with aggregated count")
	for _, edge := range g.Edges {
		assert.NotEqual(t, edge.Source, edge.Target)
	}
}

func TestBuild_FromImportSubmodule(t *testing.T) {
	root := t.TempDir()
	write(t, root, "main.py", "from app.routes import users\n")
	write(t, root, "app/__init__.py", "")
	write(t, root, "app/routes/__init__.py", "")
	write(t, root, "app/routes/users.py", "x = 1\n")

	g := Build(scanRepo(t, root))
	edges := edgeSet(g)
	_, ok := edges[[2]string{"main.py", "app/routes/users.py"}]
	assert.True(t, ok, "from-import of a submodule should resolve to the submodule file: %+v", g.Edges)
}

func TestBuild_JSRelativeImports(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/server.js", `
const routes = require('./routes');
import { db } from './lib/db';
import express from 'express';
`)
	write(t, root, "src/routes/index.js", "module.exports = {};\n")
	write(t, root, "src/lib/db.ts", "export const db = null;\n")

	g := Build(scanRepo(t, root))
	edges := edgeSet(g)

	_, ok := edges[[2]string{"src/server.js", "src/routes/index.js"}]
	assert.True(t, ok, "directory specifier should resolve through index file: %+v", g.Edges)
	_, ok = edges[[2]string{"src/server.js", "src/lib/db.ts"}]
	assert.True(t, ok, "extensionless specifier should resolve by trying extensions")

	// Bare package imports produce no edge.
	for _, e := range g.Edges {
		assert.NotEqual(t, "express", e.ImportName)
	}
}

func TestClassifyPriority(t *testing.T) {
	cases := map[string]string{
		"main.py":               "entry_point",
		"src/index.ts":          "entry_point",
		"app/routes/users.py":   "route",
		"api/handlers.js":       "route",
		"app/services/bill.py":  "service",
		"app/models/user.py":    "model",
		"app/schemas/user.py":   "model",
		"settings.py":           "config",
		"tests/test_thing.py":   "test",
		"app/helpers.py":        "module",
	}
	for p, want := range cases {
		assert.Equal(t, want, classify(p), "path %s", p)
	}
}

func TestBuild_Layers(t *testing.T) {
	root := t.TempDir()
	write(t, root, "main.py", "import helpers\n")
	write(t, root, "routes.py", "x = 1\n")
	write(t, root, "helpers.py", "y = 2\n")

	g := Build(scanRepo(t, root))

	require.Len(t, g.Layers, 3)
	assert.Equal(t, "Entry Points", g.Layers[0].Name)
	assert.Equal(t, "Routes", g.Layers[1].Name)
	assert.Equal(t, "Modules", g.Layers[2].Name)

	// Every layer file exists in the node set.
	nodes := map[string]bool{}
	for _, n := range g.Nodes {
		nodes[n.Path] = true
	}
	for _, layer := range g.Layers {
		for _, f := range layer.Files {
			assert.True(t, nodes[f], "layer references unknown node %s", f)
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	root := t.TempDir()
	write(t, root, "main.py", "import a\nimport b\n")
	write(t, root, "a.py", "import b\n")
	write(t, root, "b.py", "x = 1\n")

	g1 := Build(scanRepo(t, root))
	g2 := Build(scanRepo(t, root))
	assert.Equal(t, g1.Edges, g2.Edges)
	assert.Equal(t, g1.Nodes, g2.Nodes)
	assert.Equal(t, g1.Layers, g2.Layers)
}
