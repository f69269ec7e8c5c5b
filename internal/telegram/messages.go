package telegram

const (
	msgJoinChannels = "To use the bot, join our channels first, then send /start again."
	msgStart        = "Welcome! Send me a voice message or an audio file and I will make it sound like someone else.\n\n" +
		"Every second of audio costs one credit. Invite friends with /invite to earn more.\n\n" +
		"Commands:\n/menu - main menu\n/credits - your balance\n/invite - your invite link\n/help - how it works"
	msgMenu           = "What would you like to do?"
	msgHelp           = "1. Send a voice message or an audio file.\n2. Pick a voice from the list.\n3. Pick a pitch.\n\nThe converted audio arrives in this chat when it is ready. Each second of audio costs one credit."
	msgConvert        = "Send a voice message or an audio file to start."
	msgSendAudio      = "Send a voice message or an audio file to start a conversion."
	msgRegisterFirst  = "Please send /start first."
	msgEmptyAudio     = "This audio has no length. Please send another one."
	msgUploadFailed   = "Could not save your audio, please try again."
	msgVoiceSelect    = "Pick a voice:"
	msgNoVoices       = "No voices are available right now, please try again later."
	msgSelectCategory = "This is a category. Pick a voice below it."
	msgPitchSelect    = "Voice: %s\nPick a pitch. Use a higher pitch for a female voice and a lower one for a male voice."
	msgVoiceMissing   = "This voice is no longer available. Send your audio again to see the current list."
	msgStaleMenu      = "This menu is outdated. Send a new voice message to start over."
	msgNoCredits      = "Not enough credits: this audio costs %d and you have %d. Invite friends with /invite to earn more."
	msgProcessing     = "Processing... %d credits were charged. The result will arrive in this chat."
	msgRetryLater     = "The conversion service is busy right now. Your credits were returned, pick a pitch to try again."
	msgDispatchFailed = "The conversion could not be started. Your credits were returned."
	msgGenericError   = "Something went wrong, please try again later."
	msgCredits        = "You have %d credits."
	msgInviteBanner   = "Turn your voice into anyone's voice! Try it here:"
	msgInviteHelp     = "Share your link: %s\n\nFriends invited: %d\nCredits: %d\n\nYou get %d credits for every friend who joins."
	msgUnknownCommand = "Unknown command. Use /menu."
)
