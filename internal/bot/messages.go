package bot

// User-facing texts
const (
	msgWelcome = "🤖 Welcome, %s!\n\n" +
		"I relay your messages to the AI model of your choice.\n\n" +
		"1. Pick a model with /setmodel\n" +
		"2. Optionally add your own key with /setkey or your own endpoint with /customapi\n" +
		"3. Just send a message to start chatting\n\n" +
		"Send /help for the full command list."

	msgHelp = "🤖 Commands\n\n" +
		"/start - welcome message\n" +
		"/setmodel - choose the AI model\n" +
		"/setkey <model_id> <api_key> - use your own key for a model\n" +
		"/customapi - register your own OpenAI-compatible endpoint\n" +
		"/myapis - list your registered endpoints\n" +
		"/testapi <endpoint> <api_key> <model_name> - test an endpoint without saving it\n" +
		"/cancel - abort the endpoint setup\n" +
		"/clear - forget the conversation history\n" +
		"/help - this message"

	msgAdminHelp = "🛡 Admin commands\n\n" +
		"/ban or .ban - reply to a message to ban its author\n" +
		"/ban <user_id> or .ban <user_id> - ban by id\n" +
		"/unban or .unban - reply to a message to unban its author\n" +
		"/unban <user_id> or .unban <user_id> - unban by id"

	msgHistoryCleared  = "🧹 Conversation history cleared. You can start a new conversation now."
	msgClearIncomplete = "⚠️ History could only be partly cleared. Please try /clear again later."

	msgChooseModel     = "🤖 Choose an AI model\n\nCurrent selection: %s\n\nPick one of the buttons below:"
	msgNoModels        = "❌ No AI models are currently available."
	msgNoSelection     = "none"
	msgCustomSeparator = "--- My custom models ---"
	msgModelSelected   = "✅ Model selected: %s"
	msgSelectionFailed = "❌ Could not store your model selection. Please try again."

	msgSelectModelFirst = "⚠️ Please choose a model with /setmodel first."
	msgModelUnavailable = "⚠️ Your selected model is no longer available. Please choose another one with /setmodel."
	msgNoAPIKey         = "🔑 No API key is configured for this model. Add one with /setkey <model_id> <api_key> or pick another model."
	msgAIError          = "❌ The AI service did not answer. Please try again later."
	msgProcessing       = "🤔 Thinking..."
	msgBanned           = "🚫 You have been banned from using this bot."
	msgRateLimited      = "⏳ Too many messages. Please wait a moment and try again."

	msgSetKeyUsage   = "🔑 Usage: /setkey <model_id> <api_key>\n\nThe model id is the catalog number of a global model."
	msgInvalidModel  = "❌ Invalid model ID."
	msgKeySet        = "✅ API key saved for %s."
	msgKeyFailed     = "❌ Failed to save the API key. Please try again."
	msgNothingCancel = "Nothing to cancel."
	msgCancelled     = "❌ Custom API setup cancelled.\n\nStart again with /customapi"

	msgNoCustomAPIs   = "📝 You have no custom APIs yet.\n\nRegister one with /customapi"
	msgCustomAPIsHead = "🔧 Your custom APIs\n\n"
	msgCustomAPIsFoot = "💡 Pick one with /setmodel"
	msgListFailed     = "❌ Could not load your custom APIs. Please try again later."

	msgTestUsage   = "🔧 Usage: /testapi <endpoint> <api_key> <model_name>\n\nExample:\n/testapi https://api.example.com/v1/chat/completions sk-xxx gpt-4o"
	msgTesting     = "🔍 Testing %s with model %s..."
	msgTestPassed  = "✅ Connection test passed. Nothing was saved; use /customapi to register the endpoint."
	msgTestFailed  = "❌ Connection test failed. Check the endpoint, key and model name."
	msgBadEndpoint = "❌ The endpoint must start with http:// or https://"

	msgNoPermission   = "🚫 You do not have permission to use this command."
	msgCannotBanAdmin = "🚫 Admins cannot be banned."
	msgInvalidUserID  = "❌ Invalid user ID."
	msgModUsage       = "⚠️ Usage:\n• reply to the user's message with .%[1]s\n• or send .%[1]s <user_id>"
	msgUserBanned     = "✅ User %s (ID: %d) has been banned."
	msgUserUnbanned   = "✅ User %s (ID: %d) has been unbanned."
	msgUserNotFound   = "❌ User %d is not known to the bot."
	msgModFailed      = "❌ The moderation action failed. Please try again."
)
