package prompt

import (
	"strings"

	"ai-tutor-be/internal/constant"
)

// Input carries everything the system prompt depends on for one turn.
type Input struct {
	Subject      string
	Level        string
	FirstName    string
	Message      string
	FileContexts []string
	HasSearch    bool
}

// Builder assembles the system prompt for a tutoring turn. Sections are
// emitted in a fixed order so prompt-cache prefixes stay stable.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build returns the full system prompt.
func (b *Builder) Build(in Input) string {
	var sb strings.Builder

	b.writeIdentity(&sb, in)
	b.writeVocabularyGuide(&sb, in.Level)
	b.writeTeachingApproach(&sb, in.Message)
	b.writeGroundingRules(&sb, in)
	b.writeFileContexts(&sb, in.FileContexts)

	return sb.String()
}

func (b *Builder) writeIdentity(sb *strings.Builder, in Input) {
	sb.WriteString("Tu es un tuteur pédagogique spécialisé en ")
	sb.WriteString(in.Subject)
	sb.WriteString(" pour un élève de niveau ")
	sb.WriteString(levelLabel(in.Level))
	sb.WriteString(".")
	if in.FirstName != "" {
		sb.WriteString(" L'élève s'appelle ")
		sb.WriteString(in.FirstName)
		sb.WriteString(" ; adresse-toi à lui ou elle par son prénom.")
	}
	sb.WriteString("\n\n")
}

// writeVocabularyGuide scales language complexity with the level. The
// twelve levels collapse into four bands so the guidance stays readable.
func (b *Builder) writeVocabularyGuide(sb *strings.Builder, level string) {
	idx := constant.LevelIndex(level)

	sb.WriteString("## Langage et ton\n")
	switch {
	case idx <= constant.LevelIndex(constant.LevelCE2):
		// CP, CE1, CE2
		sb.WriteString("- Phrases très courtes et mots du quotidien uniquement.\n")
		sb.WriteString("- Une seule idée par phrase. Beaucoup d'exemples concrets (objets, animaux, jeux).\n")
		sb.WriteString("- Ton chaleureux et encourageant, tutoiement.\n")
	case idx <= constant.LevelIndex(constant.LevelCM2):
		// CM1, CM2
		sb.WriteString("- Phrases simples, vocabulaire courant. Introduis les termes techniques un par un, toujours définis.\n")
		sb.WriteString("- Appuie-toi sur des situations familières avant de généraliser.\n")
		sb.WriteString("- Ton encourageant, tutoiement.\n")
	case idx <= constant.LevelIndex(constant.LevelTroisieme):
		// collège
		sb.WriteString("- Vocabulaire du programme de collège. Les termes techniques sont attendus mais définis à la première occurrence.\n")
		sb.WriteString("- Raisonnements en plusieurs étapes acceptés, chaque étape explicitée.\n")
		sb.WriteString("- Ton bienveillant sans être infantilisant, tutoiement.\n")
	default:
		// lycée
		sb.WriteString("- Vocabulaire précis du programme de lycée, registre soutenu accepté.\n")
		sb.WriteString("- Argumentation structurée et rigueur formelle attendues.\n")
		sb.WriteString("- Ton de pair exigeant et respectueux, tutoiement.\n")
	}
	sb.WriteString("\n")
}

// writeTeachingApproach picks the scaffold from the shape of the request.
func (b *Builder) writeTeachingApproach(sb *strings.Builder, message string) {
	sb.WriteString("## Démarche pédagogique\n")

	switch classifyRequest(message) {
	case requestDrill:
		sb.WriteString("L'élève veut s'exercer. Format condensé :\n")
		sb.WriteString("1. Pose un exercice adapté au niveau, un seul à la fois.\n")
		sb.WriteString("2. Attends sa réponse avant de corriger. Ne donne jamais la solution d'emblée.\n")
		sb.WriteString("3. Corrige en pointant l'erreur précise, puis propose un exercice similaire si besoin.\n")
	case requestWriting:
		sb.WriteString("L'élève travaille une production écrite. Accompagne sans écrire à sa place :\n")
		sb.WriteString("1. Aide à dégager le plan et les idées principales.\n")
		sb.WriteString("2. Commente son texte par critères (structure, argumentation, langue), jamais en le réécrivant entièrement.\n")
		sb.WriteString("3. Suggère des reformulations ponctuelles en expliquant pourquoi.\n")
	default:
		sb.WriteString("Déroule la séance en cinq temps :\n")
		sb.WriteString("1. **Activation** : relie la notion à ce que l'élève connaît déjà.\n")
		sb.WriteString("2. **Modelage** : montre la notion ou la méthode sur un exemple complet.\n")
		sb.WriteString("3. **Pratique guidée** : fais faire un exemple semblable en guidant pas à pas.\n")
		sb.WriteString("4. **Pratique autonome** : propose un exemple à faire seul.\n")
		sb.WriteString("5. **Clôture** : fais reformuler l'essentiel par l'élève.\n")
		sb.WriteString("N'enchaîne pas les cinq temps dans un seul message ; avance au rythme de l'élève.\n")
	}
	sb.WriteString("\n")
}

func (b *Builder) writeGroundingRules(sb *strings.Builder, in Input) {
	sb.WriteString("## Règles de fiabilité\n")
	sb.WriteString("- Ne donne jamais une information dont tu n'es pas certain. Dis plutôt que tu ne sais pas.\n")
	sb.WriteString("- N'invente ni référence, ni citation, ni résultat historique ou scientifique.\n")
	sb.WriteString("- Reste dans le cadre du programme de ")
	sb.WriteString(levelLabel(in.Level))
	sb.WriteString(" ; si la question dépasse ce cadre, dis-le et ramène vers le programme.\n")
	if in.HasSearch {
		sb.WriteString("- L'outil search_curriculum te donne accès aux extraits officiels du programme. Utilise-le pour ancrer toute explication de notion, de méthode ou de définition.\n")
		sb.WriteString("- Si la recherche ne renvoie rien de pertinent, réponds avec tes connaissances générales en le signalant.\n")
	}
	sb.WriteString("\n")
}

func (b *Builder) writeFileContexts(sb *strings.Builder, contexts []string) {
	if len(contexts) == 0 {
		return
	}
	sb.WriteString("## Documents de l'élève\n")
	sb.WriteString("L'élève a partagé les documents suivants. Appuie-toi dessus en priorité quand la question s'y rapporte.\n\n")
	for _, c := range contexts {
		sb.WriteString(c)
		sb.WriteString("\n\n")
	}
}

type requestKind int

const (
	requestExplain requestKind = iota
	requestDrill
	requestWriting
)

var drillMarkers = []string{
	"exercice", "exercices", "entraîner", "entrainer", "m'entraîner",
	"réviser", "reviser", "révision", "quiz", "qcm", "interroge-moi",
	"interroge moi", "teste-moi", "teste moi",
}

var writingMarkers = []string{
	"rédaction", "redaction", "dissertation", "commentaire de texte",
	"rédiger", "rediger", "mon texte", "ma rédaction", "relire",
	"corriger mon", "corrige mon",
}

// classifyRequest is a cheap keyword heuristic over the learner message.
// It only picks the scaffold; the model still adapts within it.
func classifyRequest(message string) requestKind {
	lower := strings.ToLower(message)
	for _, marker := range writingMarkers {
		if strings.Contains(lower, marker) {
			return requestWriting
		}
	}
	for _, marker := range drillMarkers {
		if strings.Contains(lower, marker) {
			return requestDrill
		}
	}
	return requestExplain
}

var levelLabels = map[string]string{
	constant.LevelCP:         "CP",
	constant.LevelCE1:        "CE1",
	constant.LevelCE2:        "CE2",
	constant.LevelCM1:        "CM1",
	constant.LevelCM2:        "CM2",
	constant.LevelSixieme:    "sixième",
	constant.LevelCinquieme:  "cinquième",
	constant.LevelQuatrieme:  "quatrième",
	constant.LevelTroisieme:  "troisième",
	constant.LevelSeconde:    "seconde",
	constant.LevelPremiere:   "première",
	constant.LevelTerminale:  "terminale",
}

func levelLabel(level string) string {
	if label, ok := levelLabels[level]; ok {
		return label
	}
	return level
}
