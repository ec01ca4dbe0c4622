package extractor

import (
	"fmt"
	"strings"

	"github.com/Skufu/GoCyto/internal/features"
)

const promptTemplate = `
Vous êtes un expert en extraction de données biomédicales.

Votre UNIQUE sortie doit être un JSON VALIDE contenant EXACTEMENT
les %d caractéristiques suivantes.

Si une valeur n'est pas présente, mettez null.

TEXTE À ANALYSER :
%s

CLÉS OBLIGATOIRES :
%s

RÈGLE ABSOLUE :
- JSON UNIQUEMENT
- AUCUN TEXTE
`

// BuildPrompt embeds the report and the mandatory key list.
func BuildPrompt(report string) string {
	keys := make([]string, len(features.Names))
	for i, name := range features.Names {
		keys[i] = "'" + name + "'"
	}
	return fmt.Sprintf(promptTemplate, features.Count, report, "["+strings.Join(keys, ", ")+"]")
}
