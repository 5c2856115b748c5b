package templates

// locales holds the built-in prompt fragments per language. Keys missing
// from a locale resolve through the catalog's fallback chain.
var locales = map[string]map[string]string{
	"en": {
		KeySystemPrompt: "You are an assistant to generate a response for the user. " +
			"You will be provided by a set of documents associated with the user's query. " +
			"You have to generate a response based on the documents provided. " +
			"Ignore the documents that are not relevant to the user's query. " +
			"You can apologize to the user if you are not able to generate a response. " +
			"You have to generate response in the same language as the user's query. " +
			"Be polite and respectful to the user. " +
			"Be precise and concise in your response. Avoid unnecessary information.",

		KeyDocumentTemplate: "## Document No: {doc_num}\n### Content: {chunk_text}",

		KeyFooter: "Based only on the above documents, please generate an answer for the user.\n" +
			"## Question:\n{query}\n\n## Answer:",
	},

	"ar": {
		KeySystemPrompt: "أنت مساعد لتوليد إجابة للمستخدم. " +
			"سيتم تزويدك بمجموعة من المستندات المرتبطة باستعلام المستخدم. " +
			"عليك توليد إجابة بناءً على المستندات المقدمة. " +
			"تجاهل المستندات غير المتعلقة باستعلام المستخدم. " +
			"يمكنك الاعتذار للمستخدم إذا لم تتمكن من توليد إجابة. " +
			"عليك توليد الإجابة بنفس لغة استعلام المستخدم. " +
			"كن مهذباً ومحترماً مع المستخدم. " +
			"كن دقيقاً وموجزاً في إجابتك. تجنب المعلومات غير الضرورية.",

		KeyDocumentTemplate: "## مستند رقم: {doc_num}\n### المحتوى: {chunk_text}",

		KeyFooter: "بناءً على المستندات أعلاه فقط، قم بتوليد إجابة للمستخدم.\n" +
			"## السؤال:\n{query}\n\n## الإجابة:",
	},
}
