package wire

// The eagiMsgBus special-message vocabulary, enumerated in full. Routers and
// bridges switch on these rather than (or in addition to) forwarding them.
var (
	MethodPing       = Special("ping")
	MethodPong       = Special("pong")
	MethodSubscribTo = Special("subscribTo")
	MethodUnsubFrom  = Special("unsubFrom")
	MethodNotSubTo   = Special("notSubTo")
	MethodQrySubscrb = Special("qrySubscrb")
	MethodQrySubscrp = Special("qrySubscrp")

	MethodBlobFrgmnt = Special("blobFrgmnt")
	MethodBlobResend = Special("blobResend")
	MethodBlobPrpare = Special("blobPrpare")

	MethodRtrCertQry = Special("rtrCertQry")
	MethodEptCertQry = Special("eptCertQry")

	MethodTopoQuery  = Special("topoQuery")
	MethodTopoRutrCn = Special("topoRutrCn")
	MethodTopoBrdgCn = Special("topoBrdgCn")
	MethodTopoEndpt  = Special("topoEndpt")

	MethodStatsQuery = Special("statsQuery")
	MethodStatsRutr  = Special("statsRutr")
	MethodStatsBrdg  = Special("statsBrdg")
	MethodStatsEndpt = Special("statsEndpt")
	MethodStatsConn  = Special("statsConn")

	MethodStillAlive = Special("stillAlive")

	MethodByeByeEndp = Special("byeByeEndp")
	MethodByeByeRutr = Special("byeByeRutr")
	MethodByeByeBrdg = Special("byeByeBrdg")

	MethodNotARouter = Special("notARouter")
	MethodMsgFlowInf = Special("msgFlowInf")

	MethodRequestID  = Special("requestId")
	MethodAnnEndptID = Special("annEndptId")
	MethodAnnounceID = Special("announceId")
	MethodAssignID   = Special("assignId")
	MethodConfirmID  = Special("confirmId")

	MethodClrAlwList = Special("clrAlwList")
	MethodClrBlkList = Special("clrBlkList")
	MethodMsgAlwList = Special("msgAlwList")
	MethodMsgBlkList = Special("msgBlkList")
)
