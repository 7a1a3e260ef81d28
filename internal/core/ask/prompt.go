package ask

import (
	"fmt"
	"strings"
)

const systemInstruction = `You are a documentation assistant.
Answer the user's question using only the information in the provided context passages.
If the context does not contain enough information to answer, say explicitly that you cannot answer from the available documentation.
Do not invent facts, links or options that are not present in the context.`

// ComposeMessages は system 指示と、番号付きパッセージ＋質問からなる user メッセージの2件を組み立てる
func ComposeMessages(query string, passages []string) []Message {
	var sb strings.Builder

	sb.WriteString("Context:\n")
	if len(passages) == 0 {
		sb.WriteString("(no relevant passages were found)\n")
	}
	for i, p := range passages {
		sb.WriteString(fmt.Sprintf("[%d]\n", i+1))
		sb.WriteString(strings.TrimSpace(p))
		sb.WriteString("\n\n")
	}

	sb.WriteString("Question:\n")
	sb.WriteString(query)

	return []Message{
		{Role: RoleSystem, Content: systemInstruction},
		{Role: RoleUser, Content: sb.String()},
	}
}
