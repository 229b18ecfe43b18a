package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/klauern/assetsync/internal/model"
	"github.com/klauern/assetsync/internal/rules"
)

type libraryFile struct {
	Path string `json:"path"`
	RawFile
}

type versionRule struct {
	Action   string            `json:"action"`
	OS       map[string]string `json:"os"`
	Features map[string]bool   `json:"features"`
}

type library struct {
	Name      string `json:"name"`
	Downloads struct {
		Artifact    *libraryFile           `json:"artifact"`
		Classifiers map[string]libraryFile `json:"classifiers"`
	} `json:"downloads"`
	Natives map[string]string `json:"natives"`
	Rules   []versionRule     `json:"rules"`
}

type versionDocument struct {
	ID         string `json:"id"`
	AssetIndex *struct {
		ID string `json:"id"`
		RawFile
	} `json:"assetIndex"`
	Downloads struct {
		Client *RawFile `json:"client"`
	} `json:"downloads"`
	Libraries []library `json:"libraries"`
}

// DecodeVersion decodes a game version document into library jars under
// libraries/, native classifier jars for p under natives/, the client jar
// at versions/<id>/<id>.jar and the asset index at
// assets/indexes/<id>.json. Library rules are carried onto the artifacts
// so the planner filters them. Natives of libraries excluded on p are
// not resolved.
func DecodeVersion(r io.Reader, p model.Platform) ([]model.Artifact, error) {
	var doc versionDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, malformed("decode version", err)
	}
	if doc.ID == "" {
		return nil, malformed("decode version", fmt.Errorf("missing %q", "id"))
	}

	var artifacts []model.Artifact
	seen := make(map[string]struct{})
	add := func(a model.Artifact) {
		if _, dup := seen[a.Path]; dup {
			return
		}
		seen[a.Path] = struct{}{}
		artifacts = append(artifacts, a)
	}

	for _, lib := range doc.Libraries {
		libRules, err := convertRules(lib.Rules)
		if err != nil {
			return nil, malformed("decode version", fmt.Errorf("library %q: %w", lib.Name, err))
		}

		if f := lib.Downloads.Artifact; f != nil && f.Path != "" {
			add(fileArtifact("libraries/"+f.Path, f.RawFile, libRules))
		}
		if !rules.Evaluate(libRules, p) {
			continue
		}

		if classifier, ok := nativeClassifier(lib.Natives, p); ok {
			f, ok := lib.Downloads.Classifiers[classifier]
			if !ok {
				return nil, malformed("decode version",
					fmt.Errorf("library %q has no download for classifier %q", lib.Name, classifier))
			}
			add(fileArtifact("natives/"+path.Base(f.Path), f.RawFile, libRules))
		}
	}

	if c := doc.Downloads.Client; c != nil {
		add(fileArtifact(fmt.Sprintf("versions/%s/%s.jar", doc.ID, doc.ID), *c, nil))
	}
	if idx := doc.AssetIndex; idx != nil && idx.ID != "" {
		add(fileArtifact("assets/indexes/"+idx.ID+".json", idx.RawFile, nil))
	}

	sortByPath(artifacts)
	return artifacts, nil
}

func fileArtifact(p string, f RawFile, rules []model.Rule) model.Artifact {
	return model.Artifact{
		Path:  p,
		Kind:  model.KindFile,
		URL:   f.URL,
		SHA1:  f.SHA1,
		Size:  f.Size,
		Rules: rules,
	}
}

// nativeClassifier returns the classifier a library publishes for p, with
// ${arch} replaced by the platform's pointer width.
func nativeClassifier(natives map[string]string, p model.Platform) (string, bool) {
	c, ok := natives[p.OS.String()]
	if !ok || c == "" {
		return "", false
	}
	return strings.ReplaceAll(c, "${arch}", p.Bits()), true
}

// convertRules flattens version rules into conditions: os.* keys keep
// their names, features become "feature:<name>" entries, which never
// affect matching.
func convertRules(in []versionRule) ([]model.Rule, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]model.Rule, 0, len(in))
	for _, vr := range in {
		action := model.RuleAction(vr.Action)
		if !action.IsValid() {
			return nil, fmt.Errorf("unknown rule action %q", vr.Action)
		}
		var conds map[string]string
		if len(vr.OS) > 0 || len(vr.Features) > 0 {
			conds = make(map[string]string, len(vr.OS)+len(vr.Features))
			for k, v := range vr.OS {
				conds[k] = v
			}
			for k, v := range vr.Features {
				conds["feature:"+k] = strconv.FormatBool(v)
			}
		}
		out = append(out, model.Rule{Action: action, Conditions: conds})
	}
	return out, nil
}
