package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"repolens/internal/fact"
	"repolens/internal/scan"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func scanRepo(t *testing.T, root string) *scan.RepoStructure {
	t.Helper()
	s, err := scan.Scan(root, scan.Options{MaxFileSize: 1 << 20})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	return s
}

func findRoute(t *testing.T, facts []fact.Fact, summary string) *fact.Fact {
	t.Helper()
	for i := range facts {
		if facts[i].Summary == summary {
			return &facts[i]
		}
	}
	t.Fatalf("route %q not found in %d facts", summary, len(facts))
	return nil
}

func TestPython_EntryPoints(t *testing.T) {
	root := t.TempDir()
	write(t, root, "main.py", "print('boot')\n")
	write(t, root, "pkg/wsgi.py", "application = None\n")

	bundle := NewPythonAnalyzer().Analyze(scanRepo(t, root))
	entries := bundle.ByKind(fact.KindEntryPoint)
	if len(entries) != 2 {
		t.Fatalf("entries=%d want 2", len(entries))
	}
	for _, f := range entries {
		if f.Confidence != fact.ConfidenceHigh {
			t.Fatalf("confidence=%s want high", f.Confidence)
		}
	}
}

func TestPython_FastAPIInstanceEntry(t *testing.T) {
	root := t.TempDir()
	write(t, root, "server.py", "from fastapi import FastAPI\n\napi = FastAPI()\n")

	bundle := NewPythonAnalyzer().Analyze(scanRepo(t, root))
	entries := bundle.ByKind(fact.KindEntryPoint)
	if len(entries) != 1 || entries[0].Summary != "FastAPI application instance" {
		t.Fatalf("entries=%+v", entries)
	}

	// A name-matched file is not double-reported for its FastAPI call.
	root2 := t.TempDir()
	write(t, root2, "app.py", "from fastapi import FastAPI\napp = FastAPI()\n")
	bundle2 := NewPythonAnalyzer().Analyze(scanRepo(t, root2))
	entries2 := bundle2.ByKind(fact.KindEntryPoint)
	if len(entries2) != 1 {
		t.Fatalf("entries=%d want 1, got %+v", len(entries2), entries2)
	}
}

func TestPython_Frameworks(t *testing.T) {
	root := t.TempDir()
	write(t, root, "deps.py", `
import sqlalchemy
from fastapi import FastAPI
from fastapi import APIRouter
from pydantic import BaseModel
import unrelated
`)

	bundle := NewPythonAnalyzer().Analyze(scanRepo(t, root))
	frameworks := bundle.ByKind(fact.KindFramework)
	got := map[string]bool{}
	for _, f := range frameworks {
		got[f.Summary] = true
	}
	for _, want := range []string{"SQLAlchemy (ORM)", "FastAPI (Web Framework)", "Pydantic (Data Validation)"} {
		if !got[want] {
			t.Fatalf("missing %q in %v", want, got)
		}
	}
	// FastAPI imported twice in one file still yields one fact.
	if len(frameworks) != 3 {
		t.Fatalf("frameworks=%d want 3: %v", len(frameworks), got)
	}
}

func TestPython_Routes(t *testing.T) {
	root := t.TempDir()
	write(t, root, "routes.py", `
from fastapi import APIRouter

router = APIRouter(prefix="/users")

@router.get("/")
def list_users():
    return []

@router.post("/{user_id}/activate")
def activate(user_id: int):
    return None

@router.get(make_path())
def dynamic():
    return None
`)

	bundle := NewPythonAnalyzer().Analyze(scanRepo(t, root))
	routes := bundle.ByKind(fact.KindRoute)
	if len(routes) != 3 {
		t.Fatalf("routes=%d want 3", len(routes))
	}

	list := findRoute(t, routes, "GET /users/")
	if list.Confidence != fact.ConfidenceHigh {
		t.Fatalf("confidence=%s", list.Confidence)
	}
	if handler, _ := list.StringAttr("handler"); handler != "list_users" {
		t.Fatalf("handler=%q", handler)
	}

	findRoute(t, routes, "POST /users/{user_id}/activate")

	dynamic := findRoute(t, routes, "GET <path>")
	if dynamic.Confidence != fact.ConfidenceMedium {
		t.Fatalf("dynamic confidence=%s want medium", dynamic.Confidence)
	}
	if dynamic.Attributes["path"] != nil {
		t.Fatalf("dynamic path=%v want nil", dynamic.Attributes["path"])
	}
}

func TestPython_Models(t *testing.T) {
	root := t.TempDir()
	write(t, root, "models.py", `
from app.db import Base

class User(Base):
    __tablename__ = "users"
    id = Column(Integer, primary_key=True)

class AuditLog(CustomBase):
    pass

class Plain:
    pass
`)

	bundle := NewPythonAnalyzer().Analyze(scanRepo(t, root))
	models := bundle.ByKind(fact.KindDomainEntity)
	if len(models) != 2 {
		t.Fatalf("models=%d want 2", len(models))
	}
	user := models[0]
	if user.Summary != "Model class User (table: users)" {
		t.Fatalf("summary=%q", user.Summary)
	}
	if table, _ := user.StringAttr("table"); table != "users" {
		t.Fatalf("table=%q", table)
	}
	if models[1].Attributes["table"] != nil {
		t.Fatalf("AuditLog table=%v want nil", models[1].Attributes["table"])
	}
}

func TestPython_SyntaxErrorSkipsFile(t *testing.T) {
	root := t.TempDir()
	write(t, root, "broken.py", "def broken(:\n    pass\n")
	write(t, root, "ok.py", "from flask import Flask\n")

	bundle := NewPythonAnalyzer().Analyze(scanRepo(t, root))
	frameworks := bundle.ByKind(fact.KindFramework)
	if len(frameworks) != 1 || frameworks[0].Summary != "Flask (Web Framework)" {
		t.Fatalf("frameworks=%+v", frameworks)
	}
}

func TestPython_IncludeRouterPrefix(t *testing.T) {
	root := t.TempDir()
	write(t, root, "main.py", `
from fastapi import FastAPI
from app.routes import users

app = FastAPI()
app.include_router(users.router, prefix="/api")
`)
	write(t, root, "app/__init__.py", "")
	write(t, root, "app/routes/__init__.py", "")
	write(t, root, "app/routes/users.py", `
from fastapi import APIRouter

router = APIRouter()

@router.get("/users")
def list_users():
    return []
`)

	bundle := NewPythonAnalyzer().Analyze(scanRepo(t, root))
	routes := bundle.ByKind(fact.KindRoute)
	if len(routes) != 1 {
		t.Fatalf("routes=%d want 1", len(routes))
	}
	if routes[0].Summary != "GET /api/users" {
		t.Fatalf("summary=%q want \"GET /api/users\"", routes[0].Summary)
	}
	if p, _ := routes[0].StringAttr("path"); p != "/api/users" {
		t.Fatalf("path=%q", p)
	}
}

func TestPython_IncludeRouterNestedPrefixes(t *testing.T) {
	root := t.TempDir()
	write(t, root, "main.py", `
from fastapi import FastAPI
import app.v1 as v1mod

app = FastAPI()
app.include_router(v1mod.router, prefix="/api")
`)
	write(t, root, "app/__init__.py", "")
	write(t, root, "app/v1.py", `
from fastapi import APIRouter
from app.items import router as items_router

router = APIRouter()
router.include_router(items_router, prefix="/v1")
`)
	write(t, root, "app/items.py", `
from fastapi import APIRouter

router = APIRouter()

@router.get("/items")
def list_items():
    return []
`)

	bundle := NewPythonAnalyzer().Analyze(scanRepo(t, root))
	routes := bundle.ByKind(fact.KindRoute)
	if len(routes) != 1 {
		t.Fatalf("routes=%d want 1", len(routes))
	}
	if routes[0].Summary != "GET /api/v1/items" {
		t.Fatalf("summary=%q want \"GET /api/v1/items\"", routes[0].Summary)
	}
}

func TestPython_DiamondInclusionLongestPrefixWins(t *testing.T) {
	root := t.TempDir()
	write(t, root, "main.py", `
from fastapi import FastAPI
from shared import router as shared_router

app = FastAPI()
app.include_router(shared_router, prefix="/api")
`)
	write(t, root, "admin.py", `
from fastapi import FastAPI
from shared import router as shared_router

admin = FastAPI()
admin.include_router(shared_router, prefix="/admin/internal")
`)
	write(t, root, "shared.py", `
from fastapi import APIRouter

router = APIRouter()

@router.get("/things")
def things():
    return []
`)

	bundle := NewPythonAnalyzer().Analyze(scanRepo(t, root))
	routes := bundle.ByKind(fact.KindRoute)
	if len(routes) != 1 {
		t.Fatalf("routes=%d want 1", len(routes))
	}
	// Two mount points with distinct prefixes: the longest applies.
	if routes[0].Summary != "GET /admin/internal/things" {
		t.Fatalf("summary=%q", routes[0].Summary)
	}
}

func TestPython_PrefixNotReapplied(t *testing.T) {
	root := t.TempDir()
	write(t, root, "main.py", `
from fastapi import FastAPI
from routes import router

app = FastAPI()
app.include_router(router, prefix="/api")
`)
	write(t, root, "routes.py", `
from fastapi import APIRouter

router = APIRouter()

@router.get("/api/ping")
def ping():
    return "pong"
`)

	bundle := NewPythonAnalyzer().Analyze(scanRepo(t, root))
	routes := bundle.ByKind(fact.KindRoute)
	if len(routes) != 1 {
		t.Fatalf("routes=%d want 1", len(routes))
	}
	if routes[0].Summary != "GET /api/ping" {
		t.Fatalf("prefix reapplied: %q", routes[0].Summary)
	}
}

func TestModuleIndex(t *testing.T) {
	root := t.TempDir()
	write(t, root, "app/__init__.py", "")
	write(t, root, "app/routes/__init__.py", "")
	write(t, root, "app/routes/users.py", "x = 1\n")
	write(t, root, "top.py", "y = 2\n")

	fileByModule, moduleByFile := ModuleIndex(scanRepo(t, root))
	cases := map[string]string{
		"app":             "app/__init__.py",
		"app.routes":      "app/routes/__init__.py",
		"app.routes.users": "app/routes/users.py",
		"top":             "top.py",
	}
	for module, file := range cases {
		if got := fileByModule[module]; got != file {
			t.Fatalf("fileByModule[%q]=%q want %q", module, got, file)
		}
		if got := moduleByFile[file]; got != module {
			t.Fatalf("moduleByFile[%q]=%q want %q", file, got, module)
		}
	}
}

func TestJoinRoutePath(t *testing.T) {
	cases := []struct{ prefix, p, want string }{
		{"/api", "/users", "/api/users"},
		{"/api/", "/users", "/api/users"},
		{"/api", "users", "/api/users"},
		{"", "/users", "/users"},
	}
	for _, c := range cases {
		if got := joinRoutePath(c.prefix, c.p); got != c.want {
			t.Fatalf("joinRoutePath(%q,%q)=%q want %q", c.prefix, c.p, got, c.want)
		}
	}
}
