package services

// Reason keys. Each one has an entry in the locale tables.
const (
	ReasonContentNotFound      = "access.content_not_found"
	ReasonContentUnavailable   = "access.content_unavailable"
	ReasonRequiresSubscription = "access.requires_subscription_or_purchase"

	ReasonCouponNotFound       = "coupon.not_found"
	ReasonCouponNotValid       = "coupon.not_valid"
	ReasonCouponAlreadyUsed    = "coupon.already_used"
	ReasonCouponWrongUsageType = "coupon.wrong_usage_type"
	ReasonCouponWrongCreator   = "coupon.wrong_creator"
	ReasonCouponLimitReached   = "coupon.limit_reached"
	ReasonCouponCodeTaken      = "coupon.code_taken"
	ReasonCouponInvalidPercent = "coupon.invalid_percent"
	ReasonCouponInvalidCode    = "coupon.invalid_code"
	ReasonCouponNotOwner       = "coupon.not_owner"

	ReasonCouponPendingPurchase = "coupon.pending_purchase"

	ReasonPaymentEmptyID          = "payment.empty_id"
	ReasonPaymentAlreadyProcessed = "payment.already_processed"
	ReasonPaymentPurchaseNotFound = "payment.purchase_not_found"
	ReasonPaymentPayerMismatch    = "payment.payer_mismatch"
	ReasonPaymentAmountMismatch   = "payment.amount_mismatch"
	ReasonPaymentCurrencyMismatch = "payment.currency_mismatch"
	ReasonPaymentAlreadySettled   = "payment.purchase_already_settled"

	ReasonDeliveryAddContact        = "delivery.add_contact"
	ReasonDeliveryContactCheckError = "delivery.contact_check_failed"
	ReasonDeliveryContentNotFound   = "delivery.content_not_found"
	ReasonDeliveryMediaMismatch     = "delivery.media_type_mismatch"
	ReasonDeliveryViewRecordFailed  = "delivery.view_record_failed"
	ReasonDeliverySendFailed        = "delivery.send_failed"

	ReasonCreatorNotFound          = "creator.not_found"
	ReasonCreatorNotApproved       = "creator.not_approved"
	ReasonCreatorInvalidTransition = "creator.invalid_transition"
	ReasonCreatorAlreadyRegistered = "creator.already_registered"
	ReasonCreatorNoSubscription    = "creator.no_subscription_offer"

	ReasonUserNotFound              = "user.not_found"
	ReasonSubscriptionAlreadyActive = "subscription.already_active"
	ReasonContentNotForSale         = "content.not_for_sale"
)
