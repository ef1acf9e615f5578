package i18n

var tables = map[Lang]*Table{
	LangEN: {
		Greeting:          "Ask about Umrah steps, Procedure and Guidance",
		AttractTitle:      "Your Umrah Companion",
		AttractPrompt:     "Official Umrah guidance, ready to help.",
		TapToStart:        "Tap to begin",
		ChooseLanguage:    "Choose language",
		SearchReadyPrompt: "Tap a topic or type a question",
		ScopeBanner:       "Umrah guidance only; not visa, legal, or medical advice. Check official authorities for critical decisions.",
		NoPersonalData:    "Do not enter personal data.",
		SearchPlaceholder: "Search official guidance...",
		SearchButton:      "Search",
		ClearButton:       "Clear",
		SendButton:        "Send",
		ChatPlaceholder:   "Type your message...",
		EndSession:        "End Session",
		SearchingStages:   [3]string{"Finding sources…", "Reading…", "Writing…"},
		QuickChips: []string{
			"Umrah steps",
			"Miqat by air (الميقات)",
			"Ihram rules (الإحرام)",
			"Tawaf and Sa'i order (الطواف والسعي)",
		},
		TrendingTitle: "Trending questions",
		TrendingQuestions: []string{
			"What are the steps of Umrah?",
			"What is miqat?",
			"How do I get a Nusuk permit?",
			"How to visit Rawdah?",
		},
		DirectAnswer:       "Direct Answer",
		Steps:              "Steps",
		Mistakes:           "Common Mistakes",
		FollowupTitle:      "Ask a follow-up",
		ClarifyTitle:       "Clarify your question",
		FeedbackPrompt:     "Rate this answer",
		ThanksMessage:      "Thanks for your feedback.",
		GroundedLabel:      "Grounded in official guidance",
		LimitedSources:     "Limited sources",
		GeneralDisclaimer:  "General guidance (not sourced from the official PDFs). Please verify in Nusuk/official channels for critical details.",
		ShowMore:           "Show more",
		ShowLess:           "Show less",
		LocalSource:        "Local source",
		OpenPDF:            "Open PDF",
		Sources:            "Sources",
		ServiceUnavailable: "Service unavailable. Please try again.",
		RequestTimedOut:    "Request timed out. Please try again.",
		TryAgain:           "Try again",
		AssistantTyping:    "Tayyib is typing...",
		FeedbackHelp:       "Did that answer help you?",
		FeedbackMore:       "Is there anything else about Umrah I can help with?",
		FeedbackYes:        "Yes",
		FeedbackNo:         "No",
		SessionLimit:       "Session limit reached. Tap End Session to start over.",
		FooterDisclaimer:   "Informational guidance only. No legal or medical advice.",
	},
	LangAR: {
		Greeting:          "اسأل عن خطوات العمرة والإجراءات والإرشادات",
		AttractTitle:      "رفيقك في العمرة",
		AttractPrompt:     "إرشادات رسمية للعمرة لمساعدتك.",
		TapToStart:        "اضغط للبدء",
		ChooseLanguage:    "اختر اللغة",
		SearchReadyPrompt: "اختر موضوعا أو اكتب سؤالا",
		ScopeBanner:       "إرشادات العمرة فقط؛ ليست مشورة قانونية أو طبية. راجع الجهات الرسمية للقرارات المهمة.",
		NoPersonalData:    "لا تدخل بيانات شخصية.",
		SearchPlaceholder: "ابحث في الإرشادات الرسمية...",
		SearchButton:      "بحث",
		ClearButton:       "مسح",
		SendButton:        "إرسال",
		ChatPlaceholder:   "اكتب رسالتك...",
		EndSession:        "إنهاء الجلسة",
		SearchingStages:   [3]string{"جار العثور على المصادر…", "جار القراءة…", "جار الكتابة…"},
		QuickChips: []string{
			"خطوات العمرة",
			"الميقات جوًا (الميقات)",
			"أحكام الإحرام",
			"ترتيب الطواف والسعي",
		},
		TrendingTitle: "أسئلة شائعة",
		TrendingQuestions: []string{
			"ما خطوات العمرة؟",
			"ما هو الميقات؟",
			"كيف أحصل على تصريح نسك؟",
			"كيف أزور الروضة الشريفة؟",
		},
		DirectAnswer:       "الإجابة المباشرة",
		Steps:              "الخطوات",
		Mistakes:           "أخطاء شائعة",
		FollowupTitle:      "اسأل متابعة",
		ClarifyTitle:       "وضّح سؤالك",
		FeedbackPrompt:     "قيّم الإجابة",
		ThanksMessage:      "شكرا لملاحظاتك.",
		GroundedLabel:      "مستند إلى إرشادات رسمية",
		LimitedSources:     "مصادر محدودة",
		GeneralDisclaimer:  "إرشادات عامة (غير مستندة إلى ملفات PDF الرسمية). يرجى التحقق من نسك/القنوات الرسمية للتفاصيل المهمة.",
		ShowMore:           "عرض المزيد",
		ShowLess:           "عرض أقل",
		LocalSource:        "مصدر محلي",
		OpenPDF:            "فتح الملف",
		Sources:            "المصادر",
		ServiceUnavailable: "الخدمة غير متاحة حاليا. حاول مرة أخرى.",
		RequestTimedOut:    "انتهت مهلة الطلب. حاول مرة أخرى.",
		TryAgain:           "حاول مرة أخرى",
		AssistantTyping:    "طيّب يكتب...",
		FeedbackHelp:       "هل كانت هذه الإجابة مفيدة؟",
		FeedbackMore:       "هل هناك أي شيء آخر عن العمرة يمكنني مساعدتك به؟",
		FeedbackYes:        "نعم",
		FeedbackNo:         "لا",
		SessionLimit:       "تم بلوغ الحد الأقصى للجلسة. اضغط إنهاء الجلسة للبدء من جديد.",
		FooterDisclaimer:   "معلومات إرشادية فقط. لا توجد نصائح قانونية أو طبية.",
	},
	LangFR: {
		Greeting:          "Posez des questions sur les étapes, procédures et conseils de la Omra",
		AttractTitle:      "Votre compagnon de la Omra",
		AttractPrompt:     "Guidance officielle pour la Omra, prête a aider.",
		TapToStart:        "Touchez pour commencer",
		ChooseLanguage:    "Choisir la langue",
		SearchReadyPrompt: "Touchez un sujet ou saisissez une question",
		ScopeBanner:       "Guidance Omra uniquement; pas de conseils visa, juridiques ou medicaux. Consultez les autorites officielles.",
		NoPersonalData:    "N'entrez aucune donnee personnelle.",
		SearchPlaceholder: "Rechercher une guidance officielle...",
		SearchButton:      "Rechercher",
		ClearButton:       "Effacer",
		SendButton:        "Envoyer",
		ChatPlaceholder:   "Tapez votre message...",
		EndSession:        "Terminer la session",
		SearchingStages:   [3]string{"Recherche des sources…", "Lecture…", "Redaction…"},
		QuickChips: []string{
			"Etapes de la Omra",
			"Miqat par avion (الميقات)",
			"Regles de l'ihram (الإحرام)",
			"Ordre Tawaf et Sa'i (الطواف والسعي)",
		},
		TrendingTitle: "Questions tendances",
		TrendingQuestions: []string{
			"Quelles sont les etapes de la Omra?",
			"Qu'est-ce que le miqat?",
			"Comment obtenir un permis Nusuk?",
			"Visiter la Rawdah",
		},
		DirectAnswer:       "Reponse directe",
		Steps:              "Etapes",
		Mistakes:           "Erreurs courantes",
		FollowupTitle:      "Question de suivi",
		ClarifyTitle:       "Precisez votre question",
		FeedbackPrompt:     "Notez cette reponse",
		ThanksMessage:      "Merci pour votre avis.",
		GroundedLabel:      "Fonde sur des sources officielles",
		LimitedSources:     "Sources limitees",
		GeneralDisclaimer:  "Conseils generaux (non issus des PDF officiels). Verifiez via Nusuk/canaux officiels pour les details critiques.",
		ShowMore:           "Afficher plus",
		ShowLess:           "Afficher moins",
		LocalSource:        "Source locale",
		OpenPDF:            "Ouvrir le PDF",
		Sources:            "Sources",
		ServiceUnavailable: "Service indisponible. Veuillez reessayer.",
		RequestTimedOut:    "Delai d'attente depasse. Veuillez reessayer.",
		TryAgain:           "Reessayer",
		AssistantTyping:    "Tayyib ecrit...",
		FeedbackHelp:       "Cette reponse vous a-t-elle aide ?",
		FeedbackMore:       "Y a-t-il autre chose sur la Omra avec laquelle je peux vous aider ?",
		FeedbackYes:        "Oui",
		FeedbackNo:         "Non",
		SessionLimit:       "Limite de session atteinte. Touchez Terminer la session pour recommencer.",
		FooterDisclaimer:   "Informations uniquement. Pas de conseils juridiques ou medicaux.",
	},
}
