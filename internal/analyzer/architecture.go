package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/swarmforge/swarmforge/internal/domain"
)

// ArchitectureAnalyzer finds structural smells:
// single-responsibility violations across unrelated method-name
// prefixes, type-switch-heavy dispatch, god objects with a large
// public method surface, data-only containers, import cycles, and
// top-level functions that directly call many New* constructors.
type ArchitectureAnalyzer struct{}

func (a *ArchitectureAnalyzer) Name() string { return "architecture" }

var methodDecl = regexp.MustCompile(`^\s*func\s*\(\s*\w+\s+\*?(\w+)\s*\)\s*([A-Z]\w*)`)
var typeSwitchDecl = regexp.MustCompile(`switch\s+\w+\.\(type\)`)
var structDecl = regexp.MustCompile(`^\s*type\s+(\w+)\s+struct`)
var constructorCall = regexp.MustCompile(`\bNew\w+\s*\(`)
var importDecl = regexp.MustCompile(`^\s*"([\w./-]+)"\s*$`)

var concernPrefixes = []string{"Get", "Set", "Save", "Load", "Send", "Render", "Validate", "Parse", "Compute", "Handle"}

func (a *ArchitectureAnalyzer) Analyze(_ *domain.Task, artifacts []Artifact) []*domain.Improvement {
	var out []*domain.Improvement

	imports := make(map[string][]string)

	for _, artifact := range artifacts {
		lines := strings.Split(artifact.Content, "\n")
		out = append(out, a.srpFindings(artifact.Path, lines)...)
		out = append(out, a.typeSwitchFindings(artifact.Path, lines)...)
		out = append(out, a.dataContainerFindings(artifact.Path, lines)...)
		out = append(out, a.collaboratorFindings(artifact.Path, lines)...)
		imports[artifact.Path] = collectImports(lines)
	}

	out = append(out, a.circularImportFindings(imports)...)
	return out
}

func (a *ArchitectureAnalyzer) srpFindings(path string, lines []string) []*domain.Improvement {
	methodsByType := make(map[string][]string)
	for _, line := range lines {
		m := methodDecl.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		methodsByType[m[1]] = append(methodsByType[m[1]], m[2])
	}

	var out []*domain.Improvement
	for typeName, methods := range methodsByType {
		families := make(map[string]bool)
		for _, name := range methods {
			for _, prefix := range concernPrefixes {
				if strings.HasPrefix(name, prefix) {
					families[prefix] = true
				}
			}
		}
		if len(families) >= 3 {
			out = append(out, newImprovement(domain.CategoryArchitecture, domain.PriorityMedium, path, 0,
				fmt.Sprintf("%s mixes %d unrelated concerns", typeName, len(families)),
				"this type's methods span several unrelated concern families, suggesting more than one responsibility",
				"split the type along its distinct concerns",
				domain.ImpactMedium, domain.EffortMedium))
		}
		if len(methods) > 10 {
			out = append(out, newImprovement(domain.CategoryArchitecture, domain.PriorityHigh, path, 0,
				fmt.Sprintf("%s has %d public methods (god object)", typeName, len(methods)),
				"a large public method surface on one type is a common sign it has taken on too much",
				"extract cohesive subsets of behavior into collaborator types",
				domain.ImpactHigh, domain.EffortLarge))
		}
	}
	return out
}

func (a *ArchitectureAnalyzer) typeSwitchFindings(path string, lines []string) []*domain.Improvement {
	var out []*domain.Improvement
	for i, line := range lines {
		if typeSwitchDecl.MatchString(line) {
			out = append(out, newImprovement(domain.CategoryArchitecture, domain.PriorityMedium, path, i+1,
				"dispatch via type switch",
				"a type switch is used to select behavior by concrete type",
				"consider a polymorphic interface method instead of branching on type",
				domain.ImpactMedium, domain.EffortMedium))
		}
	}
	return out
}

func (a *ArchitectureAnalyzer) dataContainerFindings(path string, lines []string) []*domain.Improvement {
	var out []*domain.Improvement
	for i, line := range lines {
		m := structDecl.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		typeName := m[1]
		hasMethod := false
		for _, l := range lines {
			if strings.Contains(l, ") "+typeName+")") || strings.HasPrefix(strings.TrimSpace(l), "func (") && strings.Contains(l, "*"+typeName+")") {
				hasMethod = true
				break
			}
		}
		if !hasMethod {
			out = append(out, newImprovement(domain.CategoryArchitecture, domain.PriorityLow, path, i+1,
				typeName+" is a data-only container",
				"this struct has no apparent methods of its own",
				"confirm this is an intentional value type rather than a misplaced responsibility",
				domain.ImpactLow, domain.EffortTrivial))
		}
	}
	return out
}

func (a *ArchitectureAnalyzer) collaboratorFindings(path string, lines []string) []*domain.Improvement {
	var out []*domain.Improvement
	funcStart := -1
	flush := func(end int) {
		if funcStart < 0 {
			return
		}
		body := strings.Join(lines[funcStart:end], "\n")
		count := len(constructorCall.FindAllString(body, -1))
		if count > 3 {
			out = append(out, newImprovement(domain.CategoryArchitecture, domain.PriorityMedium, path, funcStart+1,
				"function directly instantiates many collaborators",
				fmt.Sprintf("%d constructor calls appear inside this function", count),
				"inject collaborators rather than constructing them inline",
				domain.ImpactMedium, domain.EffortMedium))
		}
	}
	for i, line := range lines {
		if funcOpen.MatchString(line) {
			flush(i)
			funcStart = i
		}
	}
	flush(len(lines))
	return out
}

func collectImports(lines []string) []string {
	var imports []string
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "import (" {
			inBlock = true
			continue
		}
		if inBlock && trimmed == ")" {
			inBlock = false
			continue
		}
		if !inBlock {
			continue
		}
		if m := importDecl.FindStringSubmatch(trimmed); m != nil {
			imports = append(imports, m[1])
		}
	}
	return imports
}

// circularImportFindings flags a direct A-imports-B, B-imports-A cycle
// between two artifacts in the same set, using each artifact's path
// prefix as a stand-in package name.
func (a *ArchitectureAnalyzer) circularImportFindings(imports map[string][]string) []*domain.Improvement {
	var out []*domain.Improvement
	seen := make(map[string]bool)

	for pathA, importsA := range imports {
		pkgA := packageNameFromPath(pathA)
		for pathB, importsB := range imports {
			if pathA == pathB {
				continue
			}
			pkgB := packageNameFromPath(pathB)
			key := pkgA + "<->" + pkgB
			if pkgA > pkgB {
				key = pkgB + "<->" + pkgA
			}
			if seen[key] {
				continue
			}
			if importsReference(importsA, pkgB) && importsReference(importsB, pkgA) {
				seen[key] = true
				out = append(out, newImprovement(domain.CategoryArchitecture, domain.PriorityHigh, pathA, 0,
					fmt.Sprintf("circular import between %s and %s", pkgA, pkgB),
					"these two packages import each other, creating a dependency cycle",
					"extract the shared interface or types into a third package both can depend on",
					domain.ImpactHigh, domain.EffortLarge))
			}
		}
	}
	return out
}

func packageNameFromPath(path string) string {
	dir := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		dir = path[:idx]
	} else {
		return path
	}
	if idx := strings.LastIndex(dir, "/"); idx >= 0 {
		return dir[idx+1:]
	}
	return dir
}

func importsReference(imports []string, pkgName string) bool {
	for _, imp := range imports {
		if strings.HasSuffix(imp, "/"+pkgName) || imp == pkgName {
			return true
		}
	}
	return false
}
