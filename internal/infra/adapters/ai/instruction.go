package ai

import (
	"fmt"
	"strings"
)

// systemInstruction frames every provider call. Output is Portuguese because the
// catalog and the audience are.
const systemInstruction = `Você é um engenheiro de prompts sênior.
Escreva UM prompt pronto para colar em um assistente de IA sobre o tema pedido.
O prompt deve definir papel, contexto, tarefa, formato de saída e restrições.
Responda apenas com o prompt, sem comentários.`

func userInstruction(topic string) string {
	return fmt.Sprintf("Tema: %s", strings.TrimSpace(topic))
}
