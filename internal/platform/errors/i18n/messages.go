package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
var enUSMessages = map[Code]string{
	"GAME_NAME_EMPTY":                 "Game name cannot be empty",
	"GAME_INVALID_CAPACITY":           "Capacity must be at least 1",
	"GAME_INVALID_AGENT_COUNT":        "A game needs at least one agent",
	"GAME_INVALID_ROUNDS":             "Number of rounds cannot be negative",
	"GAME_INVALID_HISTORY_LIMIT":      "History limit cannot be negative",
	"GAME_INVALID_STATUS_TRANSITION":  "Cannot move game from {{.from}} to {{.to}}",
	"GAME_STATUS_DISALLOWS_OPERATION": "Game status {{.status}} does not allow {{.operation}}",
	"GAME_ROSTER_FULL":                "Game already has {{.num_agents}} agents",
	"GAME_ROSTER_INCOMPLETE":          "Game needs {{.num_agents}} agents but has {{.roster}}",
	"GAME_ROUNDS_EXHAUSTED":           "Game has played all of its rounds",

	"AGENT_INVALID_TYPE":           "Agent type {{.type}} is not supported",
	"AGENT_INVALID_STRATEGY":       "Strategy {{.strategy}} is not supported",
	"AGENT_INVALID_PARAMETER":      "Agent parameter {{.parameter}} is invalid",
	"AGENT_CUSTOM_CODE_MISSING":    "Custom agents need code",
	"AGENT_CUSTOM_CONTEXT_MISSING": "Custom agents need an execution context",
	"AGENT_NOT_HUMAN":              "Only human agents accept decisions",
	"AGENT_DECISION_MISSING":       "Waiting for a human decision",

	"SANDBOX_INVALID_CODE":     "Agent code was rejected: {{.reason}}",
	"SANDBOX_EXECUTION_FAILED": "Agent code failed while deciding",
	"SANDBOX_TIMEOUT":          "Agent code took too long to decide",

	"NOT_FOUND":       "Not found",
	"GAME_NOT_FOUND":  "Game {{.game_id}} was not found",
	"AGENT_NOT_FOUND": "Agent {{.agent_id}} was not found",
}

var ptBRMessages = map[Code]string{
	"GAME_NAME_EMPTY":                 "O nome do jogo não pode ser vazio",
	"GAME_INVALID_CAPACITY":           "A capacidade deve ser pelo menos 1",
	"GAME_INVALID_AGENT_COUNT":        "Um jogo precisa de pelo menos um agente",
	"GAME_INVALID_ROUNDS":             "O número de rodadas não pode ser negativo",
	"GAME_INVALID_HISTORY_LIMIT":      "O limite de histórico não pode ser negativo",
	"GAME_INVALID_STATUS_TRANSITION":  "Não é possível mudar o jogo de {{.from}} para {{.to}}",
	"GAME_STATUS_DISALLOWS_OPERATION": "O status {{.status}} do jogo não permite {{.operation}}",
	"GAME_ROSTER_FULL":                "O jogo já tem {{.num_agents}} agentes",
	"GAME_ROSTER_INCOMPLETE":          "O jogo precisa de {{.num_agents}} agentes mas tem {{.roster}}",
	"GAME_ROUNDS_EXHAUSTED":           "O jogo já jogou todas as rodadas",

	"AGENT_INVALID_TYPE":           "O tipo de agente {{.type}} não é suportado",
	"AGENT_INVALID_STRATEGY":       "A estratégia {{.strategy}} não é suportada",
	"AGENT_INVALID_PARAMETER":      "O parâmetro {{.parameter}} do agente é inválido",
	"AGENT_CUSTOM_CODE_MISSING":    "Agentes personalizados precisam de código",
	"AGENT_CUSTOM_CONTEXT_MISSING": "Agentes personalizados precisam de um contexto de execução",
	"AGENT_NOT_HUMAN":              "Apenas agentes humanos aceitam decisões",
	"AGENT_DECISION_MISSING":       "Aguardando a decisão de um humano",

	"SANDBOX_INVALID_CODE":     "O código do agente foi rejeitado: {{.reason}}",
	"SANDBOX_EXECUTION_FAILED": "O código do agente falhou ao decidir",
	"SANDBOX_TIMEOUT":          "O código do agente demorou demais para decidir",

	"NOT_FOUND":       "Não encontrado",
	"GAME_NOT_FOUND":  "O jogo {{.game_id}} não foi encontrado",
	"AGENT_NOT_FOUND": "O agente {{.agent_id}} não foi encontrado",
}
