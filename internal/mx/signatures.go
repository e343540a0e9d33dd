package mx

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadSignatures reads provider pattern overrides from a YAML file of the form
//
//	signatures:
//	  google: [...]
//	  outlook: [...]
//
// A provider list that is absent from the file keeps its built-in patterns.
// Unknown provider keys are rejected.
func LoadSignatures(path string) (Signatures, error) {
	sigs := DefaultSignatures()

	data, err := os.ReadFile(path)
	if err != nil {
		return sigs, eris.Wrapf(err, "mx: read signatures %s", path)
	}

	var wrapper struct {
		Signatures yaml.Node `yaml:"signatures"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return sigs, eris.Wrap(err, "mx: parse signatures")
	}
	if wrapper.Signatures.Kind == 0 {
		return sigs, nil
	}

	var lists map[string][]string
	if err := wrapper.Signatures.Decode(&lists); err != nil {
		return sigs, eris.Wrap(err, "mx: decode signatures")
	}
	for name, patterns := range lists {
		switch name {
		case "google":
			sigs.Google = patterns
		case "outlook":
			sigs.Outlook = patterns
		default:
			return DefaultSignatures(), eris.Errorf("mx: unknown provider %q in signatures", name)
		}
	}
	return sigs, nil
}
