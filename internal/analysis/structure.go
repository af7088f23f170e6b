package analysis

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"repolens/internal/fact"
	"repolens/internal/scan"
)

// configFileNames maps well-known configuration file names to
// (file type, description).
var configFileNames = map[string][2]string{
	"config.py":          {"Python", "Application configuration module"},
	"settings.py":        {"Python", "Django-style settings module"},
	"pyproject.toml":     {"TOML", "Python project configuration"},
	"alembic.ini":        {"INI", "Alembic database migration configuration"},
	"pytest.ini":         {"INI", "Pytest configuration"},
	"setup.cfg":          {"INI", "Python package configuration"},
	"config.yaml":        {"YAML", "YAML configuration file"},
	"config.yml":         {"YAML", "YAML configuration file"},
	"config.json":        {"JSON", "JSON configuration file"},
	".env":               {"Environment", "Environment variables file"},
	".env.example":       {"Environment", "Example environment variables template"},
	".env.local":         {"Environment", "Local environment overrides"},
	"package.json":       {"JSON", "Node.js package configuration"},
	"tsconfig.json":      {"JSON", "TypeScript compiler configuration"},
	"next.config.js":     {"JavaScript", "Next.js configuration"},
	"next.config.mjs":    {"JavaScript", "Next.js configuration"},
	"vite.config.ts":     {"TypeScript", "Vite bundler configuration"},
	"vite.config.js":     {"JavaScript", "Vite bundler configuration"},
	"webpack.config.js":  {"JavaScript", "Webpack bundler configuration"},
	"tailwind.config.js": {"JavaScript", "Tailwind CSS configuration"},
	"tailwind.config.ts": {"TypeScript", "Tailwind CSS configuration"},
	"jest.config.js":     {"JavaScript", "Jest testing configuration"},
	"jest.config.ts":     {"TypeScript", "Jest testing configuration"},
	".eslintrc.js":       {"JavaScript", "ESLint configuration"},
	".eslintrc.json":     {"JSON", "ESLint configuration"},
	".prettierrc":        {"JSON", "Prettier configuration"},
	"schema.prisma":      {"Prisma", "Prisma database schema"},
	"docker-compose.yml": {"YAML", "Container orchestration"},
	"Dockerfile":         {"Dockerfile", "Container definition"},
}

// subsystemDirs maps directory names to (subsystem name, description).
var subsystemDirs = map[string][2]string{
	"services":   {"Services", "Business logic and service layer"},
	"service":    {"Services", "Business logic and service layer"},
	"api":        {"API Layer", "HTTP API handlers and endpoints"},
	"routes":     {"Routing", "HTTP route definitions"},
	"models":     {"Data Models", "Database models and entities"},
	"schemas":    {"Schemas", "Data validation and serialization schemas"},
	"core":       {"Core", "Core application configuration and utilities"},
	"utils":      {"Utilities", "Helper functions and utilities"},
	"auth":       {"Authentication", "Authentication and authorization"},
	"db":         {"Database", "Database connection and queries"},
	"database":   {"Database", "Database connection and queries"},
	"middleware": {"Middleware", "Request/response middleware"},
	"tasks":      {"Background Tasks", "Async tasks and job processing"},
	"workers":    {"Workers", "Background job workers"},
}

var (
	reGetenv       = regexp.MustCompile(`os\.getenv\s*\(\s*["']([^"']+)["'](?:\s*,\s*([^)]+))?\)`)
	reEnviron      = regexp.MustCompile(`os\.environ\s*\[\s*["']([^"']+)["']\s*\]`)
	rePydanticEnv  = regexp.MustCompile(`(\w+)\s*:\s*\w+\s*=\s*Field\s*\([^)]*env\s*=\s*["']([^"']+)["']`)
	reProcessEnv   = regexp.MustCompile(`process\.env\.([A-Z_][A-Z0-9_]*)`)
	reProcessEnvBr = regexp.MustCompile(`process\.env\[["']([A-Z_][A-Z0-9_]*)["']`)
	reNextPublic   = regexp.MustCompile(`(NEXT_PUBLIC_[A-Z0-9_]+)`)

	rePySetting  = regexp.MustCompile(`(?m)^\s*[A-Z_]+\s*=`)
	reEnvSetting = regexp.MustCompile(`(?m)^[A-Z_]+=`)

	reParamExec = regexp.MustCompile(`execute\s*\([^,]+,\s*[\[\(]`)
)

type secretPattern struct {
	re   *regexp.Regexp
	desc string
}

var secretPatterns = []secretPattern{
	{regexp.MustCompile(`(?i)password\s*=\s*["'][^"']{4,}["']`), "hardcoded password"},
	{regexp.MustCompile(`(?i)secret_key\s*=\s*["'][^"']{8,}["']`), "hardcoded secret"},
	{regexp.MustCompile(`(?i)api_key\s*=\s*["'][^"']{8,}["']`), "hardcoded API key"},
	{regexp.MustCompile(`(?i)auth_token\s*=\s*["'][^"']{20,}["']`), "hardcoded token"},
	{regexp.MustCompile(`(?i)private_key\s*=\s*["'][^"']{20,}["']`), "hardcoded private key"},
	{regexp.MustCompile(`AWS_SECRET_ACCESS_KEY\s*=\s*["'][^"']+["']`), "AWS secret key"},
	{regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`), "embedded private key"},
	{regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}`), "GitHub personal access token"},
	{regexp.MustCompile(`sk-[a-zA-Z0-9]{48}`), "OpenAI API key pattern"},
}

type insecurePattern struct {
	re       *regexp.Regexp
	desc     string
	severity string
}

var insecurePatterns = []insecurePattern{
	{regexp.MustCompile(`(?i)DEBUG\s*=\s*True`), "Debug mode enabled", "medium"},
	{regexp.MustCompile(`(?i)verify\s*=\s*False`), "SSL verification disabled", "high"},
	{regexp.MustCompile(`(?i)allow_origins\s*=\s*\["\*"\]`), "Permissive CORS configuration", "medium"},
	{regexp.MustCompile(`(?i)subprocess\.(run|call|Popen).*shell\s*=\s*True`), "Shell injection risk", "high"},
	{regexp.MustCompile(`(?i)pickle\.loads?\s*\(`), "Pickle deserialization risk", "medium"},
	{regexp.MustCompile(`(?i)hashlib\.md5\(|hashlib\.sha1\(`), "Weak hash algorithm", "low"},
}

var reTodoMarker = regexp.MustCompile(`(?i)#\s*(TODO|FIXME|HACK|XXX|BUG)`)

const (
	largeFileLines = 500
	maxRiskFacts   = 30
)

var codeExts = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".go": true, ".java": true, ".rb": true,
}

// StructureAnalyzer derives facts from names, layout, and lightweight
// text patterns rather than syntax trees. It complements the parser
// based analyzers with signals that do not need a grammar.
type StructureAnalyzer struct{}

func NewStructureAnalyzer() *StructureAnalyzer { return &StructureAnalyzer{} }

func (a *StructureAnalyzer) Name() string { return "structure" }

func (a *StructureAnalyzer) Analyze(s *scan.RepoStructure) fact.Bundle {
	var bundle fact.Bundle
	bundle.Extend(a.configFileFacts(s))
	bundle.Extend(a.envVarFacts(s))
	bundle.Extend(a.subsystemFacts(s))
	bundle.Extend(a.patternFacts(s))
	bundle.Extend(a.riskFacts(s))
	return bundle
}

func (a *StructureAnalyzer) configFileFacts(s *scan.RepoStructure) []fact.Fact {
	var facts []fact.Fact
	for _, fi := range s.Files {
		entry, ok := configFileNames[path.Base(fi.RelPath)]
		if !ok {
			continue
		}
		settings := 0
		if fi.Content != nil {
			switch {
			case fi.Ext == ".py":
				settings = len(rePySetting.FindAllString(*fi.Content, -1))
			case strings.HasPrefix(path.Base(fi.RelPath), ".env"):
				settings = len(reEnvSetting.FindAllString(*fi.Content, -1))
			}
		}
		facts = append(facts, fact.Fact{
			Kind:       fact.KindConfigFile,
			Summary:    fmt.Sprintf("%s: %s", fi.RelPath, entry[1]),
			Confidence: fact.ConfidenceHigh,
			Evidence:   []fact.Evidence{{FilePath: fi.RelPath}},
			Attributes: map[string]any{
				"file":           fi.RelPath,
				"file_type":      entry[0],
				"settings_count": settings,
			},
		})
	}
	return facts
}

func (a *StructureAnalyzer) envVarFacts(s *scan.RepoStructure) []fact.Fact {
	var facts []fact.Fact
	seen := map[string]bool{}
	add := func(name, file, desc string, hasDefault bool, defaultValue string) {
		if seen[name] {
			return
		}
		seen[name] = true
		attrs := map[string]any{
			"name":        name,
			"file":        file,
			"has_default": hasDefault,
		}
		if hasDefault && defaultValue != "" {
			attrs["default"] = defaultValue
		}
		if desc != "" {
			attrs["description"] = desc
		}
		facts = append(facts, fact.Fact{
			Kind:       fact.KindEnvVar,
			Summary:    fmt.Sprintf("Environment variable %s", name),
			Confidence: fact.ConfidenceHigh,
			Evidence:   []fact.Evidence{{FilePath: file, Symbol: name}},
			Attributes: attrs,
		})
	}

	for _, fi := range s.Files {
		if fi.Content == nil {
			continue
		}
		content := *fi.Content
		switch {
		case fi.Ext == ".py":
			for _, m := range reGetenv.FindAllStringSubmatch(content, -1) {
				def := strings.TrimSpace(m[2])
				add(m[1], fi.RelPath, "", def != "", def)
			}
			for _, m := range reEnviron.FindAllStringSubmatch(content, -1) {
				add(m[1], fi.RelPath, "Required, no default provided", false, "")
			}
			for _, m := range rePydanticEnv.FindAllStringSubmatch(content, -1) {
				add(m[2], fi.RelPath, fmt.Sprintf("Pydantic settings field: %s", m[1]), true, "")
			}
		case jsFamilyExt(fi.Ext):
			for _, m := range reProcessEnv.FindAllStringSubmatch(content, -1) {
				add(m[1], fi.RelPath, "Node.js environment variable", false, "")
			}
			for _, m := range reProcessEnvBr.FindAllStringSubmatch(content, -1) {
				add(m[1], fi.RelPath, "Node.js environment variable", false, "")
			}
			for _, m := range reNextPublic.FindAllStringSubmatch(content, -1) {
				add(m[1], fi.RelPath, "Next.js public environment variable", false, "")
			}
		}
	}
	return facts
}

func jsFamilyExt(ext string) bool {
	switch ext {
	case ".js", ".ts", ".jsx", ".tsx", ".mjs", ".cjs":
		return true
	}
	return false
}

func (a *StructureAnalyzer) subsystemFacts(s *scan.RepoStructure) []fact.Fact {
	var facts []fact.Fact
	seen := map[string]bool{}
	for _, d := range s.Directories {
		dirName := strings.ToLower(path.Base(d.RelPath))
		entry, ok := subsystemDirs[dirName]
		if !ok || seen[dirName] {
			continue
		}
		seen[dirName] = true

		var keyFiles []string
		for _, fi := range s.Files {
			if len(keyFiles) >= 5 {
				break
			}
			if strings.HasPrefix(fi.RelPath, d.RelPath+"/") && fi.Ext == ".py" &&
				path.Base(fi.RelPath) != "__init__.py" {
				keyFiles = append(keyFiles, fi.RelPath)
			}
		}
		facts = append(facts, fact.Fact{
			Kind:       fact.KindSubsystem,
			Summary:    fmt.Sprintf("%s: %s", entry[0], entry[1]),
			Confidence: fact.ConfidenceMedium,
			Evidence:   []fact.Evidence{{FilePath: d.RelPath}},
			Attributes: map[string]any{
				"name":      entry[0],
				"directory": d.RelPath,
				"key_files": keyFiles,
			},
		})
	}
	return facts
}

func (a *StructureAnalyzer) patternFacts(s *scan.RepoStructure) []fact.Fact {
	hasPathWith := func(sub string) (string, bool) {
		for _, fi := range s.Files {
			if strings.Contains(strings.ToLower(fi.RelPath), sub) {
				return fi.RelPath, true
			}
		}
		return "", false
	}
	hasDirWith := func(sub string) (string, bool) {
		for _, d := range s.Directories {
			if strings.Contains(strings.ToLower(d.RelPath), sub) {
				return d.RelPath, true
			}
		}
		return "", false
	}

	var facts []fact.Fact
	add := func(name, evidencePath string) {
		facts = append(facts, fact.Fact{
			Kind:       fact.KindPattern,
			Summary:    name,
			Confidence: fact.ConfidenceMedium,
			Evidence:   []fact.Evidence{{FilePath: evidencePath}},
			Attributes: map[string]any{"pattern": name},
		})
	}

	routeFile, hasRoutes := hasPathWith("route")
	_, hasServices := hasPathWith("service")
	_, hasModels := hasPathWith("model")
	if hasRoutes && hasServices && hasModels {
		add("Layered architecture (routes -> services -> models)", routeFile)
	}

	for _, fi := range s.Files {
		if strings.Contains(strings.ToLower(fi.RelPath), "dependencies") ||
			(fi.Content != nil && strings.Contains(*fi.Content, "Depends(")) {
			add("Dependency injection", fi.RelPath)
			break
		}
	}

	if p, ok := hasPathWith("schema"); ok {
		add("Request/response schema validation", p)
	}
	if p, ok := hasDirWith("alembic"); ok {
		add("Database migrations", p)
	} else if p, ok := hasDirWith("migrations"); ok {
		add("Database migrations", p)
	}
	if p, ok := hasPathWith("middleware"); ok {
		add("Middleware pattern", p)
	}
	return facts
}

func (a *StructureAnalyzer) riskFacts(s *scan.RepoStructure) []fact.Fact {
	type risk struct {
		location string
		riskType string
		desc     string
		severity string
	}
	var risks []risk

	for _, fi := range s.Files {
		if fi.Content == nil {
			continue
		}
		content := *fi.Content

		if fi.LineCount > largeFileLines {
			risks = append(risks, risk{
				location: fi.RelPath,
				riskType: "Large file",
				desc:     fmt.Sprintf("File has %d lines, may be difficult to maintain", fi.LineCount),
				severity: "low",
			})
		}

		if !codeExts[fi.Ext] {
			continue
		}

		if strings.Contains(content, "execute(") && containsSQLKeyword(content) &&
			!reParamExec.MatchString(content) {
			risks = append(risks, risk{
				location: fi.RelPath,
				riskType: "Possible SQL injection",
				desc:     "Raw SQL execution without apparent parameterization detected",
				severity: "high",
			})
		}

		for _, sp := range secretPatterns {
			if !sp.re.MatchString(content) {
				continue
			}
			lower := strings.ToLower(fi.RelPath)
			if strings.Contains(lower, "test") || strings.Contains(lower, "example") {
				risks = append(risks, risk{
					location: fi.RelPath,
					riskType: fmt.Sprintf("Possible %s", sp.desc),
					desc:     fmt.Sprintf("Found %s pattern in test/example file, verify it is not a real credential", sp.desc),
					severity: "medium",
				})
			} else {
				risks = append(risks, risk{
					location: fi.RelPath,
					riskType: fmt.Sprintf("Possible %s", sp.desc),
					desc:     fmt.Sprintf("Detected pattern matching %s, review for exposed credentials", sp.desc),
					severity: "high",
				})
			}
			break
		}

		for _, ip := range insecurePatterns {
			if ip.re.MatchString(content) {
				risks = append(risks, risk{
					location: fi.RelPath,
					riskType: ip.desc,
					desc:     fmt.Sprintf("Detected %s, review for security implications", ip.desc),
					severity: ip.severity,
				})
			}
		}

		if n := len(reTodoMarker.FindAllString(content, -1)); n > 5 {
			risks = append(risks, risk{
				location: fi.RelPath,
				riskType: "Technical debt markers",
				desc:     fmt.Sprintf("Contains %d TODO/FIXME/HACK comments indicating unfinished work", n),
				severity: "low",
			})
		}
	}

	testFiles, codeFiles := 0, 0
	for _, fi := range s.Files {
		if fi.Ext != ".py" {
			continue
		}
		if strings.Contains(strings.ToLower(fi.RelPath), "test") {
			testFiles++
		} else {
			codeFiles++
		}
	}
	if codeFiles > 0 && float64(testFiles) < float64(codeFiles)*0.2 {
		risks = append(risks, risk{
			location: "tests/",
			riskType: "Limited test coverage",
			desc:     fmt.Sprintf("Only %d test files for %d code files", testFiles, codeFiles),
			severity: "medium",
		})
	}

	// Dedup by (location, type), then rank by severity. The slice is
	// capped so one sprawling repo cannot flood the bundle.
	type key struct{ loc, typ string }
	seen := map[key]bool{}
	var unique []risk
	for _, r := range risks {
		k := key{r.location, r.riskType}
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, r)
	}
	rank := map[string]int{"high": 0, "medium": 1, "low": 2}
	sort.SliceStable(unique, func(i, j int) bool {
		return rank[unique[i].severity] < rank[unique[j].severity]
	})
	if len(unique) > maxRiskFacts {
		unique = unique[:maxRiskFacts]
	}

	var facts []fact.Fact
	for _, r := range unique {
		confidence := fact.ConfidenceMedium
		if r.severity == "low" {
			confidence = fact.ConfidenceLow
		}
		facts = append(facts, fact.Fact{
			Kind:       fact.KindRisk,
			Summary:    fmt.Sprintf("%s: %s", r.riskType, r.location),
			Confidence: confidence,
			Evidence:   []fact.Evidence{{FilePath: r.location}},
			Attributes: map[string]any{
				"risk_type":   r.riskType,
				"description": r.desc,
				"severity":    r.severity,
			},
		})
	}
	return facts
}

func containsSQLKeyword(content string) bool {
	for _, kw := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}
