package modules

// AssistantModule is the default conversational capability. It has no tools:
// the runner sends the conversation straight to the model and returns its
// text. Every request that matches nothing else lands here.
type AssistantModule struct{}

// NewAssistantModule creates the default capability.
func NewAssistantModule() *AssistantModule {
	return &AssistantModule{}
}

func (m *AssistantModule) Info() Info {
	return Info{
		ID:   DefaultModuleID,
		Icon: "🤖",
		Name: map[string]string{
			"ru": "Ассистент",
			"kz": "Ассистент",
		},
		Description: map[string]string{
			"ru": "Общие вопросы и свободный разговор",
			"kz": "Жалпы сұрақтар және еркін әңгіме",
		},
	}
}

func (m *AssistantModule) Instructions(lang string) string {
	if lang == "kz" {
		return "Хабарлама басқа модульдерге сәйкес келмесе осы модульді таңда: " +
			"сәлемдесу, жалпы сұрақтар, еркін әңгіме."
	}
	return "Выбирай этот модуль, когда сообщение не подходит ни под один другой: " +
		"приветствия, общие вопросы, свободный разговор."
}

func (m *AssistantModule) Keywords() []string { return nil }

func (m *AssistantModule) Tools() []Tool { return nil }
